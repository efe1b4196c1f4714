package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/fachebot/evm-genie-bot/internal/dex/uniswapv2"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Call 待提交的合约调用
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

type Cost struct {
	GasLimit  uint64
	GasPrice  *big.Int
	WorstCase *big.Int
}

type Estimator struct {
	client evm.Client
	router *uniswapv2.Router
}

func NewEstimator(client evm.Client, router *uniswapv2.Router) *Estimator {
	return &Estimator{client: client, router: router}
}

func validPercent(p decimal.Decimal) bool {
	return p.IsPositive() && p.LessThanOrEqual(hundred)
}

// ApplySlippage floor(expected * (1 - slippage/100))
func ApplySlippage(expected *big.Int, slippage decimal.Decimal) *big.Int {
	factor := hundred.Sub(slippage)
	return decimal.NewFromBigInt(expected, 0).Mul(factor).Shift(-2).Floor().BigInt()
}

// InflateByBuffer ceil(value * (1 + buffer/100))
func InflateByBuffer(value *big.Int, buffer decimal.Decimal) *big.Int {
	factor := hundred.Add(buffer)
	return decimal.NewFromBigInt(value, 0).Mul(factor).Shift(-2).Ceil().BigInt()
}

func (e *Estimator) quote(ctx context.Context, amountIn *big.Int, slippage decimal.Decimal, path []common.Address) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !validPercent(slippage) {
		return nil, fmt.Errorf("%w: slippage %s out of range", ErrInvalidInput, slippage)
	}

	amounts, err := e.router.GetAmountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	expected := amounts[len(amounts)-1]
	if expected.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero expected output", ErrQuoteUnavailable)
	}
	return ApplySlippage(expected, slippage), nil
}

func (e *Estimator) QuoteBuy(ctx context.Context, nativeAmountIn *big.Int, slippage decimal.Decimal, path []common.Address) (*big.Int, error) {
	return e.quote(ctx, nativeAmountIn, slippage, path)
}

func (e *Estimator) QuoteSell(ctx context.Context, tokenAmountIn *big.Int, slippage decimal.Decimal, path []common.Address) (*big.Int, error) {
	return e.quote(ctx, tokenAmountIn, slippage, path)
}

// EstimateCost 估算调用的gas并按缓冲比例放大
func (e *Estimator) EstimateCost(ctx context.Context, call Call, gasBuffer decimal.Decimal) (Cost, error) {
	if !validPercent(gasBuffer) {
		return Cost{}, fmt.Errorf("%w: gas buffer %s out of range", ErrInvalidInput, gasBuffer)
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gas, err := e.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  call.From,
		To:    &call.To,
		Value: value,
		Data:  call.Data,
	})
	if err != nil {
		return Cost{}, classifyChainError("estimate gas", err)
	}
	if gas == 0 {
		return Cost{}, ErrInvalidGasLimit
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return Cost{}, transportError("suggest gas price", err)
	}

	gasLimit := InflateByBuffer(new(big.Int).SetUint64(gas), gasBuffer)
	if !gasLimit.IsUint64() {
		return Cost{}, ErrInvalidGasLimit
	}
	gasPrice = InflateByBuffer(gasPrice, gasBuffer)

	worstCase := new(big.Int).Mul(gasLimit, gasPrice)
	worstCase.Add(worstCase, value)

	return Cost{
		GasLimit:  gasLimit.Uint64(),
		GasPrice:  gasPrice,
		WorstCase: worstCase,
	}, nil
}
