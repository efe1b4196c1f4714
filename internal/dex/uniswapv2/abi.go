package uniswapv2

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const routerABIJson = `[
	{"inputs":[],"name":"WETH","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"pure","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"}],
	 "name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapExactETHForTokensSupportingFeeOnTransferTokens","outputs":[],
	 "stateMutability":"payable","type":"function"},
	{"inputs":[
		{"internalType":"uint256","name":"amountIn","type":"uint256"},
		{"internalType":"uint256","name":"amountOutMin","type":"uint256"},
		{"internalType":"address[]","name":"path","type":"address[]"},
		{"internalType":"address","name":"to","type":"address"},
		{"internalType":"uint256","name":"deadline","type":"uint256"}],
	 "name":"swapExactTokensForETHSupportingFeeOnTransferTokens","outputs":[],
	 "stateMutability":"nonpayable","type":"function"}
]`

const factoryABIJson = `[
	{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
	 "name":"getPair","outputs":[{"name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const pairABIJson = `[
	{"inputs":[],"name":"getReserves","outputs":[
		{"internalType":"uint112","name":"reserve0","type":"uint112"},
		{"internalType":"uint112","name":"reserve1","type":"uint112"},
		{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],
	 "stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const (
	MethodGetAmountsOut = "getAmountsOut"
	MethodBuy           = "swapExactETHForTokensSupportingFeeOnTransferTokens"
	MethodSell          = "swapExactTokensForETHSupportingFeeOnTransferTokens"
)

var (
	RouterABI  = mustParseABI(routerABIJson)
	FactoryABI = mustParseABI(factoryABIJson)
	PairABI    = mustParseABI(pairABIJson)
)

func mustParseABI(data string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(data))
	if err != nil {
		panic(err)
	}
	return parsed
}
