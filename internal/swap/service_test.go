package swap

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/cache"
	"github.com/fachebot/evm-genie-bot/internal/dex/uniswapv2"
	"github.com/fachebot/evm-genie-bot/internal/eth"
	"github.com/fachebot/evm-genie-bot/internal/kvstore"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/utils"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser = "alice"
	testChat = int64(-100200300)
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type harness struct {
	chain    *fakeChain
	store    kvstore.Store
	models   Models
	registry *session.Registry
	svc      *SwapService
	account  common.Address

	mutex  sync.Mutex
	events []Event
}

func newHarness(t *testing.T, infiniteApproval bool) *harness {
	t.Helper()

	store, err := kvstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	encoder, err := utils.NewHashEncoder("test")
	require.NoError(t, err)

	chain := newFakeChain()
	models := Models{
		Wallet:   model.NewWalletModel(store, nil),
		Settings: model.NewSettingsModel(store),
		Channel:  model.NewChannelModel(store),
	}
	registry := session.NewRegistry(encoder, 0)
	router := uniswapv2.NewRouter(chain, routerAddr, factoryAddr, wethAddr)
	priceCache := cache.NewPriceCache(func(ctx context.Context) (decimal.Decimal, error) {
		return decimal.NewFromInt(3000), nil
	}, time.Minute)

	svc := NewSwapService(
		chain,
		router,
		eth.NewNonceManager(model.NewNonceModel(store), chain),
		models,
		registry,
		cache.NewTokenMetaCache(chain),
		priceCache,
		nil,
		Options{ChainId: 1, InfiniteApproval: infiniteApproval, PollInterval: time.Millisecond},
	)
	svc.now = func() time.Time { return fixedNow }

	return &harness{chain: chain, store: store, models: models, registry: registry, svc: svc}
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	keyHex, address, err := evm.GenerateKey()
	require.NoError(t, err)
	h.account = common.HexToAddress(address)

	require.NoError(t, h.models.Wallet.Save(ctx, testUser, model.Wallet{Address: address, PrivateKey: keyHex}))
	require.NoError(t, h.models.Settings.Save(ctx, testUser, model.SettingGasBuffer, decimal.NewFromInt(10)))
	require.NoError(t, h.models.Settings.Save(ctx, testUser, model.SettingSlippage, decimal.NewFromInt(5)))
	require.NoError(t, h.models.Channel.Save(ctx, testChat, tokenAddr.Hex()))

	h.chain.nativeBalance[h.account] = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
}

func (h *harness) notifier() Notifier {
	return NotifierFunc(func(ctx context.Context, e Event) {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		h.events = append(h.events, e)
	})
}

func (h *harness) eventKinds() []EventKind {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	kinds := make([]EventKind, 0, len(h.events))
	for _, e := range h.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (h *harness) buy(amount string) (*TradeResult, error) {
	return h.svc.Buy(context.Background(), BuyRequest{
		ChatId:   testChat,
		Username: testUser,
		Amount:   decimal.RequireFromString(amount),
		Notifier: h.notifier(),
	})
}

var genieHolding = session.Holding{Symbol: "GENIE", TokenAddress: tokenAddr.Hex()}

func (h *harness) sell(index int, tag string, percent int64) (*TradeResult, error) {
	return h.svc.Sell(context.Background(), SellRequest{
		Username: testUser,
		Index:    index,
		Tag:      tag,
		Percent:  decimal.NewFromInt(percent),
		Notifier: h.notifier(),
	})
}

func TestBuyMissingConfigNeverSubmits(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrConfigurationMissing)

	var missing *MissingConfigError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []MissingItem{MissingChannelBinding, MissingGasBuffer, MissingSlippage, MissingWallet}, missing.Items)
	assert.Empty(t, h.chain.sentTxs())
	assert.Empty(t, h.eventKinds())
}

func TestBuyMissingSingleSetting(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	// bob 只设置了gas缓冲
	other := "bob"
	keyHex, address, err := evm.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, h.models.Wallet.Save(context.Background(), other, model.Wallet{Address: address, PrivateKey: keyHex}))
	require.NoError(t, h.models.Settings.Save(context.Background(), other, model.SettingGasBuffer, decimal.NewFromInt(10)))

	_, err = h.svc.Buy(context.Background(), BuyRequest{ChatId: testChat, Username: other, Amount: decimal.NewFromInt(1)})
	var missing *MissingConfigError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []MissingItem{MissingSlippage}, missing.Items)
	assert.Empty(t, h.chain.sentTxs())
}

func TestBuyCorruptSettings(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	require.NoError(t, h.store.Set(context.Background(), "settings:slippage:"+testUser, "not-json"))

	_, err := h.buy("1")
	require.ErrorIs(t, err, model.ErrCorruptRecord)
	assert.Empty(t, h.chain.sentTxs())
}

func TestBuySuccess(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.pendingPolls = 2

	result, err := h.buy("1")
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventInitiated, EventSwapSubmitted, EventSucceeded}, h.eventKinds())

	sent := h.chain.sentTxs()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, routerAddr, tx.To)
	assert.Equal(t, h.account, tx.From)
	assert.Equal(t, uniswapv2.MethodBuy, tx.Method)
	assert.Equal(t, "1000000000000000000", tx.Value.String())
	assert.Equal(t, uint64(110000), tx.Gas)
	assert.Equal(t, "1100000000", tx.Price.String())

	// 1 ETH 预期 1000e18, 滑点5%
	assert.Equal(t, "950000000000000000000", tx.Args[0].(*big.Int).String())
	assert.Equal(t, []common.Address{wethAddr, tokenAddr}, tx.Args[1].([]common.Address))
	assert.Equal(t, h.account, tx.Args[2].(common.Address))
	assert.Equal(t, fixedNow.Add(10*time.Minute).Unix(), tx.Args[3].(*big.Int).Int64())

	require.NotNil(t, result.Summary)
	assert.Equal(t, "GENIE", result.Summary.TokenSymbol)
	assert.True(t, result.Summary.PriceUSD.Equal(decimal.RequireFromString("0.3")), result.Summary.PriceUSD.String())
	assert.True(t, result.Summary.MarketCapUSD.Equal(decimal.NewFromInt(300_000_000)), result.Summary.MarketCapUSD.String())
	assert.True(t, result.Summary.TokenAmount.Equal(decimal.NewFromInt(1_000_000_000_000)), result.Summary.TokenAmount.String())
	assert.Equal(t, utils.GetBlockExplorerTxLink(1, result.TxHash), result.TxLink)
}

func TestBuyBalanceMustExceedAmount(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.nativeBalance[h.account] = big.NewInt(1e18)

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, h.chain.sentTxs())
	assert.Empty(t, h.eventKinds())
}

func TestBuyWorstCaseExceedsBalance(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	// 余额只比买入数量多 1 wei
	h.chain.nativeBalance[h.account] = big.NewInt(1e18 + 1)

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, h.chain.sentTxs())
}

func TestBuyQuoteUnavailable(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.rateNum = 0

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.Empty(t, h.chain.sentTxs())
}

func TestBuySlippageRevert(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.revertSwap = true
	h.chain.replayErr = errors.New("execution reverted: UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT")

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrSlippageExceeded)
	assert.ErrorIs(t, err, ErrChainRejected)
	assert.Len(t, h.chain.sentTxs(), 1)
	assert.Equal(t, []EventKind{EventInitiated, EventSwapSubmitted}, h.eventKinds())
}

func TestBuyRevertOtherReason(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.revertSwap = true

	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrChainRejected)
	assert.False(t, errors.Is(err, ErrSlippageExceeded))
}

func TestBuyInvalidAmount(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)

	_, err := h.buy("0")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.buy("-1")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestTradeInProgress(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)

	require.True(t, h.svc.locker.TryLock(testUser))
	_, err := h.buy("1")
	require.ErrorIs(t, err, ErrTradeInProgress)

	h.svc.locker.Unlock(testUser)
	_, err = h.buy("1")
	require.NoError(t, err)
}

func TestSellAmountRounding(t *testing.T) {
	assert.Equal(t, "500", SellAmount(big.NewInt(1000), decimal.NewFromInt(50)).String())
	assert.Equal(t, "166", SellAmount(big.NewInt(333), decimal.NewFromInt(50)).String())
	assert.Equal(t, "333", SellAmount(big.NewInt(333), decimal.NewFromInt(100)).String())
	assert.Equal(t, "16", SellAmount(big.NewInt(333), decimal.NewFromInt(5)).String())
}

func TestSellApprovesThenSwaps(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(1000)
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	_, err := h.sell(0, genieHolding.Tag(), 50)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventInitiated, EventApprovalSubmitted, EventApprovalConfirmed, EventSwapSubmitted, EventSucceeded}, h.eventKinds())

	sent := h.chain.sentTxs()
	require.Len(t, sent, 2)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, routerAddr, sent[0].Args[0].(common.Address))
	assert.Equal(t, 0, sent[0].Args[1].(*big.Int).Cmp(evm.MaxUint256))

	assert.Equal(t, uniswapv2.MethodSell, sent[1].Method)
	assert.Equal(t, "500", sent[1].Args[0].(*big.Int).String())
	assert.Equal(t, "475000", sent[1].Args[1].(*big.Int).String())
	assert.Equal(t, []common.Address{tokenAddr, wethAddr}, sent[1].Args[2].([]common.Address))
}

func TestSellExactApprovalAndRounding(t *testing.T) {
	h := newHarness(t, false)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(333)
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	_, err := h.sell(0, genieHolding.Tag(), 50)
	require.NoError(t, err)

	sent := h.chain.sentTxs()
	require.Len(t, sent, 2)
	assert.Equal(t, "166", sent[0].Args[1].(*big.Int).String())
	assert.Equal(t, "166", sent[1].Args[0].(*big.Int).String())
}

func TestSellSkipsApprovalWhenAllowed(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(1000)
	h.chain.allowance[h.account] = big.NewInt(1000)
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	_, err := h.sell(0, genieHolding.Tag(), 100)
	require.NoError(t, err)

	sent := h.chain.sentTxs()
	require.Len(t, sent, 1)
	assert.Equal(t, uniswapv2.MethodSell, sent[0].Method)
}

func TestSellAllowanceShortAborts(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(1000)
	h.chain.approveNoop = true
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	_, err := h.sell(0, genieHolding.Tag(), 50)
	require.ErrorIs(t, err, ErrAllowanceShort)

	sent := h.chain.sentTxs()
	require.Len(t, sent, 1)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, []EventKind{EventInitiated, EventApprovalSubmitted}, h.eventKinds())
}

func TestSellHoldingNotFound(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	_, err := h.sell(1, genieHolding.Tag(), 50)
	require.ErrorIs(t, err, ErrHoldingNotFound)

	// 快照已被替换, 同一下标指向其他代币
	_, err = h.sell(0, "deadbeef", 50)
	require.ErrorIs(t, err, ErrHoldingNotFound)
	assert.Empty(t, h.chain.sentTxs())
}

func TestSellSameSymbolSelectsByIndex(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(1000)
	h.chain.allowance[h.account] = big.NewInt(1000)

	impostor := session.Holding{Symbol: "GENIE", TokenAddress: "0x3333333333333333333333333333333333333333"}
	h.registry.RecordHoldings(testUser, []session.Holding{impostor, genieHolding})

	result, err := h.sell(1, genieHolding.Tag(), 100)
	require.NoError(t, err)
	assert.Equal(t, tokenAddr.Hex(), result.Summary.TokenAddress)

	sent := h.chain.sentTxs()
	require.Len(t, sent, 1)
	assert.Equal(t, []common.Address{tokenAddr, wethAddr}, sent[0].Args[2].([]common.Address))
}

func TestSellReportsReceivedAmount(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)
	h.chain.tokenBalance[h.account] = big.NewInt(1000)
	h.chain.allowance[h.account] = big.NewInt(1000)
	h.registry.RecordHoldings(testUser, []session.Holding{genieHolding})

	// 没有Withdrawal事件时只能报告最少到账数量
	result, err := h.sell(0, genieHolding.Tag(), 50)
	require.NoError(t, err)
	assert.True(t, result.Summary.NativeMin)
	assert.True(t, result.Summary.NativeAmount.Equal(evm.ParseETH(big.NewInt(475000))), result.Summary.NativeAmount.String())

	h.chain.sellOut = big.NewInt(498000)
	result, err = h.sell(0, genieHolding.Tag(), 50)
	require.NoError(t, err)
	assert.False(t, result.Summary.NativeMin)
	assert.True(t, result.Summary.NativeAmount.Equal(evm.ParseETH(big.NewInt(498000))), result.Summary.NativeAmount.String())
}

func TestSellInvalidPercent(t *testing.T) {
	h := newHarness(t, true)
	h.configure(t)

	_, err := h.sell(0, genieHolding.Tag(), 0)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.sell(0, genieHolding.Tag(), 101)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSellMissingSettings(t *testing.T) {
	h := newHarness(t, true)
	keyHex, address, err := evm.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, h.models.Wallet.Save(context.Background(), testUser, model.Wallet{Address: address, PrivateKey: keyHex}))

	_, err = h.sell(0, genieHolding.Tag(), 50)
	var missing *MissingConfigError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []MissingItem{MissingGasBuffer, MissingSlippage}, missing.Items)
	assert.Empty(t, h.chain.sentTxs())
}
