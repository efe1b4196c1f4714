package swap

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/fachebot/evm-genie-bot/internal/dex/uniswapv2"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	routerAddr  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	factoryAddr = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	wethAddr    = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokenAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pairAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")

	transferSig   = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	withdrawalSig = crypto.Keccak256Hash([]byte("Withdrawal(address,uint256)"))
)

type sentTx struct {
	From   common.Address
	To     common.Address
	Value  *big.Int
	Gas    uint64
	Price  *big.Int
	Method string
	Args   []any
}

// fakeChain 用真实ABI解码调用数据的内存链
type fakeChain struct {
	mutex sync.Mutex

	nativeBalance map[common.Address]*big.Int
	tokenBalance  map[common.Address]*big.Int
	allowance     map[common.Address]*big.Int

	rateNum, rateDen int64
	quoteErr         error

	gasEstimate uint64
	estimateErr error
	gasPrice    *big.Int

	approveNoop  bool
	revertSwap   bool
	replayErr    error
	pendingPolls int

	sellOut                     *big.Int
	reserveToken, reserveNative *big.Int
	totalSupply                 *big.Int

	sent     []sentTx
	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		nativeBalance: make(map[common.Address]*big.Int),
		tokenBalance:  make(map[common.Address]*big.Int),
		allowance:     make(map[common.Address]*big.Int),
		rateNum:       1000,
		rateDen:       1,
		gasEstimate:   100000,
		gasPrice:      big.NewInt(1_000_000_000),
		reserveToken:  new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1_000_000_000)),
		reserveNative: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		totalSupply:   new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000_000)),
		receipts:      make(map[common.Hash]*types.Receipt),
		polls:         make(map[common.Hash]int),
	}
}

func lookupMethod(contractABI abi.ABI, data []byte) (*abi.Method, []any, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("short calldata")
	}
	for _, m := range contractABI.Methods {
		if bytes.Equal(m.ID, data[:4]) {
			args, err := m.Inputs.Unpack(data[4:])
			return &m, args, err
		}
	}
	return nil, nil, errors.New("unknown method")
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if v, ok := f.nativeBalance[account]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if blockNumber != nil && f.replayErr != nil {
		return nil, f.replayErr
	}

	switch *call.To {
	case routerAddr:
		m, args, err := lookupMethod(uniswapv2.RouterABI, call.Data)
		if err != nil {
			return nil, err
		}
		if m.Name != uniswapv2.MethodGetAmountsOut {
			return nil, nil
		}
		if f.quoteErr != nil {
			return nil, f.quoteErr
		}
		amountIn := args[0].(*big.Int)
		out := new(big.Int).Mul(amountIn, big.NewInt(f.rateNum))
		out.Div(out, big.NewInt(f.rateDen))
		return m.Outputs.Pack([]*big.Int{amountIn, out})
	case factoryAddr:
		return uniswapv2.FactoryABI.Methods["getPair"].Outputs.Pack(pairAddr)
	case pairAddr:
		m, _, err := lookupMethod(uniswapv2.PairABI, call.Data)
		if err != nil {
			return nil, err
		}
		if m.Name == "token0" {
			return m.Outputs.Pack(tokenAddr)
		}
		return m.Outputs.Pack(f.reserveToken, f.reserveNative, uint32(0))
	case tokenAddr:
		m, args, err := lookupMethod(evm.ERC20ABI, call.Data)
		if err != nil {
			return nil, err
		}
		switch m.Name {
		case "name":
			return m.Outputs.Pack("Genie Token")
		case "symbol":
			return m.Outputs.Pack("GENIE")
		case "decimals":
			return m.Outputs.Pack(uint8(9))
		case "totalSupply":
			return m.Outputs.Pack(f.totalSupply)
		case "balanceOf":
			return m.Outputs.Pack(f.valueOf(f.tokenBalance, args[0].(common.Address)))
		case "allowance":
			return m.Outputs.Pack(f.valueOf(f.allowance, args[0].(common.Address)))
		}
	}
	return nil, errors.New("unknown contract")
}

func (f *fakeChain) valueOf(m map[common.Address]*big.Int, account common.Address) *big.Int {
	if v, ok := m[account]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.gasEstimate, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	var n uint64
	for _, tx := range f.sent {
		if tx.From == account {
			n++
		}
	}
	return n, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	record := sentTx{From: from, To: *tx.To(), Value: tx.Value(), Gas: tx.Gas(), Price: tx.GasPrice()}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(100),
	}

	switch *tx.To() {
	case tokenAddr:
		m, args, err := lookupMethod(evm.ERC20ABI, tx.Data())
		if err != nil {
			return err
		}
		record.Method, record.Args = m.Name, args
		if m.Name == "approve" && !f.approveNoop {
			f.allowance[from] = args[1].(*big.Int)
		}
	case routerAddr:
		m, args, err := lookupMethod(uniswapv2.RouterABI, tx.Data())
		if err != nil {
			return err
		}
		record.Method, record.Args = m.Name, args
		if f.revertSwap {
			receipt.Status = types.ReceiptStatusFailed
		} else if m.Name == uniswapv2.MethodBuy {
			out := new(big.Int).Mul(tx.Value(), big.NewInt(f.rateNum))
			out.Div(out, big.NewInt(f.rateDen))
			receipt.Logs = []*types.Log{{
				Address: tokenAddr,
				Topics:  []common.Hash{transferSig, common.BytesToHash(pairAddr.Bytes()), common.BytesToHash(from.Bytes())},
				Data:    common.LeftPadBytes(out.Bytes(), 32),
			}}
		} else if m.Name == uniswapv2.MethodSell && f.sellOut != nil {
			receipt.Logs = []*types.Log{{
				Address: wethAddr,
				Topics:  []common.Hash{withdrawalSig, common.BytesToHash(routerAddr.Bytes())},
				Data:    common.LeftPadBytes(f.sellOut.Bytes(), 32),
			}}
		}
	}

	f.sent = append(f.sent, record)
	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.polls[txHash]++
	if f.polls[txHash] <= f.pendingPolls {
		return nil, ethereum.NotFound
	}
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeChain) sentTxs() []sentTx {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]sentTx(nil), f.sent...)
}
