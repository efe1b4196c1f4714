package swap

import (
	"context"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type EventKind int

const (
	EventInitiated EventKind = iota
	EventApprovalSubmitted
	EventApprovalConfirmed
	EventSwapSubmitted
	EventSucceeded
)

type TradeSummary struct {
	TokenAddress string
	TokenName    string
	TokenSymbol  string
	NativeAmount decimal.Decimal
	NativeMin    bool // NativeAmount 为最少到账数量
	TokenAmount  decimal.Decimal
	PriceUSD     decimal.Decimal
	MarketCapUSD decimal.Decimal
	TxLink       string
}

type Event struct {
	Kind      EventKind
	RequestId string
	Side      Side
	Username  string
	TxHash    string
	TxLink    string
	Summary   *TradeSummary
}

// Notifier 交易进度回调, 由聊天层负责渲染
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

type nopNotifier struct{}

func (nopNotifier) Notify(ctx context.Context, e Event) {}
