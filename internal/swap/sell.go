package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// SellRequest Index和Tag指向打开卖出菜单时记录的持仓快照
type SellRequest struct {
	Username string
	Index    int
	Tag      string
	Percent  decimal.Decimal
	Notifier Notifier
}

// SellAmount floor(balance * percent / 100), 以最小单位计
func SellAmount(balance *big.Int, percent decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(balance, 0).Mul(percent).Shift(-2).Floor().BigInt()
}

// Sell 按持仓比例卖出代币换回原生币, 授权不足时先授权
func (s *SwapService) Sell(ctx context.Context, req SellRequest) (result *TradeResult, err error) {
	if !validPercent(req.Percent) {
		return nil, fmt.Errorf("%w: sell percent must be between 1 and 100", ErrInvalidInput)
	}

	t, release, err := s.begin(ctx, SideSell, 0, req.Username, req.Notifier)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	holding, ok := s.holdings.HoldingAt(t.username, req.Index, req.Tag)
	if !ok {
		return nil, fmt.Errorf("%w: index %d, tag %s", ErrHoldingNotFound, req.Index, req.Tag)
	}
	t.token = common.HexToAddress(holding.TokenAddress)

	// 计算卖出数量
	tokenBalance, err := evm.GetTokenBalance(ctx, s.client, t.token.Hex(), t.account.Hex())
	if err != nil {
		return nil, transportError("token balance", err)
	}
	amountIn := SellAmount(tokenBalance, req.Percent)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: nothing to sell", ErrInsufficientFunds)
	}

	// 需要原生币支付gas
	balance, err := s.client.BalanceAt(ctx, t.account, nil)
	if err != nil {
		return nil, transportError("balance", err)
	}
	if balance.Sign() <= 0 {
		return nil, fmt.Errorf("%w: no native balance for gas", ErrInsufficientFunds)
	}

	logger.Infof("[SwapService] 开始卖出, request: %s, username: %s, token: %s, percent: %s, amount: %s",
		t.requestId, t.username, t.token.Hex(), req.Percent, amountIn)
	t.notify(ctx, Event{Kind: EventInitiated})

	// 报价
	path := s.router.SellPath(t.token)
	minOut, err := s.estimator.QuoteSell(ctx, amountIn, t.slippage, path)
	if err != nil {
		return nil, err
	}

	if err = s.ensureAllowance(ctx, t, amountIn); err != nil {
		return nil, err
	}

	data, err := s.router.PackSell(amountIn, minOut, path, t.account, big.NewInt(s.deadline()))
	if err != nil {
		return nil, err
	}

	res, err := s.executeStep(ctx, t, Step{
		Name:      "swap",
		Call:      Call{From: t.account, To: s.router.Address(), Value: big.NewInt(0), Data: data},
		Submitted: EventSwapSubmitted,
	})
	if err != nil {
		return nil, err
	}

	summary := &TradeSummary{
		TokenAddress: t.token.Hex(),
		TokenSymbol:  holding.Symbol,
		NativeAmount: evm.ParseETH(minOut),
		NativeMin:    true,
		TxLink:       res.Link,
	}
	// 路由合约解包WETH后转给用户, Withdrawal事件即实际到账数量
	if res.Receipt != nil {
		if received, ok := evm.GetWETHWithdrawn(res.Receipt, s.router.WETH(), s.router.Address()); ok {
			summary.NativeAmount = evm.ParseETH(received)
			summary.NativeMin = false
		}
	}
	if meta, err := s.tokenMetaCache.GetTokenMeta(ctx, t.token.Hex()); err == nil {
		summary.TokenName = meta.Name
		summary.TokenAmount = evm.ParseUnits(amountIn, meta.Decimals)
	}
	t.notify(ctx, Event{Kind: EventSucceeded, TxHash: res.Hash.Hex(), TxLink: res.Link, Summary: summary})

	return &TradeResult{RequestId: t.requestId, TxHash: res.Hash.Hex(), TxLink: res.Link, Summary: summary}, nil
}

// ensureAllowance 授权上链后重新读取额度, 仍不足则中止
func (s *SwapService) ensureAllowance(ctx context.Context, t *trade, amount *big.Int) error {
	spender := s.router.Address()
	allowance, err := evm.GetTokenAllowance(ctx, s.client, t.token.Hex(), t.account.Hex(), spender.Hex())
	if err != nil {
		return transportError("allowance", err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	approveAmount := amount
	if s.opts.InfiniteApproval {
		approveAmount = evm.MaxUint256
	}
	data, err := evm.EncodeERC20ApproveInput(spender, approveAmount)
	if err != nil {
		return err
	}

	_, err = s.executeStep(ctx, t, Step{
		Name:      "approve",
		Call:      Call{From: t.account, To: t.token, Value: big.NewInt(0), Data: data},
		Submitted: EventApprovalSubmitted,
	})
	if err != nil {
		return err
	}

	allowance, err = evm.GetTokenAllowance(ctx, s.client, t.token.Hex(), t.account.Hex(), spender.Hex())
	if err != nil {
		return transportError("allowance", err)
	}
	if allowance.Cmp(amount) < 0 {
		logger.Errorf("[SwapService] 授权后额度仍不足, request: %s, token: %s, allowance: %s, amount: %s",
			t.requestId, t.token.Hex(), allowance, amount)
		return fmt.Errorf("%w: allowance %s, need %s", ErrAllowanceShort, allowance, amount)
	}

	t.notify(ctx, Event{Kind: EventApprovalConfirmed})
	return nil
}
