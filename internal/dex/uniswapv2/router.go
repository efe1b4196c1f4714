package uniswapv2

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var ErrPairNotFound = errors.New("pair not found")

type Reserves struct {
	Token0   common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Router Uniswap V2 路由合约, 只负责报价和编码调用数据
type Router struct {
	client  evm.Client
	address common.Address
	factory common.Address
	weth    common.Address
}

func NewRouter(client evm.Client, router, factory, weth common.Address) *Router {
	return &Router{client: client, address: router, factory: factory, weth: weth}
}

func (r *Router) Address() common.Address {
	return r.address
}

func (r *Router) WETH() common.Address {
	return r.weth
}

func (r *Router) BuyPath(token common.Address) []common.Address {
	return []common.Address{r.weth, token}
}

func (r *Router) SellPath(token common.Address) []common.Address {
	return []common.Address{token, r.weth}
}

func (r *Router) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	values, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

// GetAmountsOut 返回路径上每一跳的输出数量
func (r *Router) GetAmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	values, err := r.call(ctx, RouterABI, r.address, MethodGetAmountsOut, amountIn, path)
	if err != nil {
		return nil, err
	}

	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("unexpected getAmountsOut result: %v", values)
	}
	return amounts, nil
}

func (r *Router) PackBuy(amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return RouterABI.Pack(MethodBuy, amountOutMin, path, to, deadline)
}

func (r *Router) PackSell(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return RouterABI.Pack(MethodSell, amountIn, amountOutMin, path, to, deadline)
}

func (r *Router) GetPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	values, err := r.call(ctx, FactoryABI, r.factory, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}

	pair, ok := values[0].(common.Address)
	if !ok || pair == (common.Address{}) {
		return common.Address{}, ErrPairNotFound
	}
	return pair, nil
}

func (r *Router) GetReserves(ctx context.Context, pair common.Address) (Reserves, error) {
	values, err := r.call(ctx, PairABI, pair, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	reserve0, ok0 := values[0].(*big.Int)
	reserve1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return Reserves{}, fmt.Errorf("unexpected getReserves result: %v", values)
	}

	values, err = r.call(ctx, PairABI, pair, "token0")
	if err != nil {
		return Reserves{}, err
	}
	token0, ok := values[0].(common.Address)
	if !ok {
		return Reserves{}, fmt.Errorf("unexpected token0 result: %v", values)
	}

	return Reserves{Token0: token0, Reserve0: reserve0, Reserve1: reserve1}, nil
}

// TokenPriceInNative 根据交易对储备计算单个代币的原生币价格
func (r *Router) TokenPriceInNative(ctx context.Context, token common.Address, tokenDecimals uint8) (decimal.Decimal, error) {
	pair, err := r.GetPair(ctx, r.weth, token)
	if err != nil {
		return decimal.Zero, err
	}

	reserves, err := r.GetReserves(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	tokenReserve, nativeReserve := reserves.Reserve0, reserves.Reserve1
	if reserves.Token0 != token {
		tokenReserve, nativeReserve = reserves.Reserve1, reserves.Reserve0
	}
	if tokenReserve.Sign() == 0 || nativeReserve.Sign() == 0 {
		return decimal.Zero, errors.New("pair has no liquidity")
	}

	return evm.ParseETH(nativeReserve).Div(evm.ParseUnits(tokenReserve, tokenDecimals)), nil
}
