package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/shopspring/decimal"
)

type BuyRequest struct {
	ChatId   int64
	Username string
	Amount   decimal.Decimal
	Notifier Notifier
}

// Buy 用原生币买入群组绑定的代币
func (s *SwapService) Buy(ctx context.Context, req BuyRequest) (result *TradeResult, err error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: buy amount must be positive", ErrInvalidInput)
	}
	amountIn := evm.FormatETH(req.Amount)
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: buy amount too small", ErrInvalidInput)
	}

	t, release, err := s.begin(ctx, SideBuy, req.ChatId, req.Username, req.Notifier)
	if err != nil {
		return nil, err
	}
	defer func() { release(err) }()

	// 余额必须大于买入数量
	balance, err := s.client.BalanceAt(ctx, t.account, nil)
	if err != nil {
		return nil, transportError("balance", err)
	}
	if balance.Cmp(amountIn) <= 0 {
		return nil, fmt.Errorf("%w: balance %s, amount %s", ErrInsufficientFunds, balance, amountIn)
	}

	logger.Infof("[SwapService] 开始买入, request: %s, username: %s, token: %s, amount: %s",
		t.requestId, t.username, t.token.Hex(), req.Amount)
	t.notify(ctx, Event{Kind: EventInitiated})

	// 报价
	path := s.router.BuyPath(t.token)
	minOut, err := s.estimator.QuoteBuy(ctx, amountIn, t.slippage, path)
	if err != nil {
		return nil, err
	}

	data, err := s.router.PackBuy(minOut, path, t.account, big.NewInt(s.deadline()))
	if err != nil {
		return nil, err
	}

	res, err := s.executeStep(ctx, t, Step{
		Name:      "swap",
		Call:      Call{From: t.account, To: s.router.Address(), Value: amountIn, Data: data},
		Submitted: EventSwapSubmitted,
	})
	if err != nil {
		return nil, err
	}

	summary := s.buySummary(ctx, t, req.Amount, res)
	t.notify(ctx, Event{Kind: EventSucceeded, TxHash: res.Hash.Hex(), TxLink: res.Link, Summary: summary})

	return &TradeResult{RequestId: t.requestId, TxHash: res.Hash.Hex(), TxLink: res.Link, Summary: summary}, nil
}

// buySummary 成交后的价格和市值, 失败只记录日志
func (s *SwapService) buySummary(ctx context.Context, t *trade, nativeAmount decimal.Decimal, res stepResult) *TradeSummary {
	summary := &TradeSummary{
		TokenAddress: t.token.Hex(),
		NativeAmount: nativeAmount,
		TxLink:       res.Link,
	}

	meta, err := s.tokenMetaCache.GetTokenMeta(ctx, t.token.Hex())
	if err != nil {
		logger.Warnf("[SwapService] 查询代币元数据失败, request: %s, token: %s, %v", t.requestId, t.token.Hex(), err)
		return summary
	}
	summary.TokenName = meta.Name
	summary.TokenSymbol = meta.Symbol

	if res.Receipt != nil {
		if received, ok := evm.GetTokenBalanceChanges(res.Receipt, t.account.Hex())[t.token]; ok {
			summary.TokenAmount = evm.ParseUnits(received, meta.Decimals)
		}
	}

	priceNative, err := s.router.TokenPriceInNative(ctx, t.token, meta.Decimals)
	if err != nil {
		logger.Warnf("[SwapService] 查询代币价格失败, request: %s, token: %s, %v", t.requestId, t.token.Hex(), err)
		return summary
	}

	if s.priceCache == nil {
		return summary
	}
	nativeUSD, err := s.priceCache.NativeUSD(ctx)
	if err != nil {
		logger.Warnf("[SwapService] 查询原生币价格失败, request: %s, %v", t.requestId, err)
		return summary
	}
	summary.PriceUSD = priceNative.Mul(nativeUSD)

	totalSupply, err := evm.GetTokenTotalSupply(ctx, s.client, t.token.Hex())
	if err != nil {
		logger.Warnf("[SwapService] 查询代币总量失败, request: %s, token: %s, %v", t.requestId, t.token.Hex(), err)
		return summary
	}
	summary.MarketCapUSD = summary.PriceUSD.Mul(evm.ParseUnits(totalSupply, meta.Decimals))

	return summary
}
