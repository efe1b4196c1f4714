package swap

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/cache"
	"github.com/fachebot/evm-genie-bot/internal/dex/uniswapv2"
	"github.com/fachebot/evm-genie-bot/internal/eth"
	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/metrics"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Options struct {
	ChainId          int64
	InfiniteApproval bool
	Deadline         time.Duration
	PollInterval     time.Duration
}

type Models struct {
	Wallet   *model.WalletModel
	Settings *model.SettingsModel
	Channel  *model.ChannelModel
}

// HoldingsLookup 卖出时按下标查找持仓快照
type HoldingsLookup interface {
	HoldingAt(username string, index int, tag string) (session.Holding, bool)
}

type SwapService struct {
	client         evm.Client
	router         *uniswapv2.Router
	estimator      *Estimator
	nonceManager   *eth.NonceManager
	models         Models
	holdings       HoldingsLookup
	tokenMetaCache *cache.TokenMetaCache
	priceCache     *cache.PriceCache
	locker         *TradeLocker
	metrics        *metrics.BotMetrics
	opts           Options
	now            func() time.Time
}

func NewSwapService(
	client evm.Client,
	router *uniswapv2.Router,
	nonceManager *eth.NonceManager,
	models Models,
	holdings HoldingsLookup,
	tokenMetaCache *cache.TokenMetaCache,
	priceCache *cache.PriceCache,
	botMetrics *metrics.BotMetrics,
	opts Options,
) *SwapService {
	if opts.Deadline <= 0 {
		opts.Deadline = 10 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}

	return &SwapService{
		client:         client,
		router:         router,
		estimator:      NewEstimator(client, router),
		nonceManager:   nonceManager,
		models:         models,
		holdings:       holdings,
		tokenMetaCache: tokenMetaCache,
		priceCache:     priceCache,
		locker:         NewTradeLocker(),
		metrics:        botMetrics,
		opts:           opts,
		now:            time.Now,
	}
}

func (s *SwapService) Estimator() *Estimator {
	return s.estimator
}

type TradeResult struct {
	RequestId string
	TxHash    string
	TxLink    string
	Summary   *TradeSummary
}

// trade 单笔交易的上下文
type trade struct {
	requestId string
	side      Side
	username  string
	prv       *ecdsa.PrivateKey
	account   common.Address
	token     common.Address
	gasBuffer decimal.Decimal
	slippage  decimal.Decimal
	notifier  Notifier
	startedAt time.Time
}

func (t *trade) notify(ctx context.Context, e Event) {
	e.RequestId = t.requestId
	e.Side = t.side
	e.Username = t.username
	t.notifier.Notify(ctx, e)
}

func (s *SwapService) deadline() int64 {
	return s.now().Add(s.opts.Deadline).Unix()
}

// begin 加锁并校验配置, 返回的release必须调用
func (s *SwapService) begin(ctx context.Context, side Side, chatId int64, username string, notifier Notifier) (*trade, func(error), error) {
	if username == "" {
		return nil, nil, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	if !s.locker.TryLock(username) {
		return nil, nil, ErrTradeInProgress
	}

	if notifier == nil {
		notifier = nopNotifier{}
	}
	t := &trade{
		requestId: uuid.NewString(),
		side:      side,
		username:  username,
		notifier:  notifier,
		startedAt: s.now(),
	}

	release := func(err error) {
		s.locker.Unlock(username)
		outcome := "success"
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.metrics.ObserveTrade(string(side), outcome, time.Since(t.startedAt).Seconds())
	}

	if err := s.validate(ctx, t, side == SideBuy, chatId); err != nil {
		release(err)
		return nil, nil, err
	}
	return t, release, nil
}

// validate 一次性收集所有缺失的配置项
func (s *SwapService) validate(ctx context.Context, t *trade, needBinding bool, chatId int64) error {
	var missing []MissingItem

	if needBinding {
		token, err := s.models.Channel.FindByChatId(ctx, chatId)
		switch {
		case err == nil:
			t.token = common.HexToAddress(token)
		case model.IsNotFound(err):
			missing = append(missing, MissingChannelBinding)
		default:
			return storeError("channel binding", err)
		}
	}

	gasBuffer, err := s.models.Settings.FindGasBuffer(ctx, t.username)
	switch {
	case err == nil:
		t.gasBuffer = gasBuffer
	case model.IsNotFound(err):
		missing = append(missing, MissingGasBuffer)
	default:
		return storeError("gas buffer", err)
	}

	slippage, err := s.models.Settings.FindSlippage(ctx, t.username)
	switch {
	case err == nil:
		t.slippage = slippage
	case model.IsNotFound(err):
		missing = append(missing, MissingSlippage)
	default:
		return storeError("slippage", err)
	}

	w, err := s.models.Wallet.FindByUsername(ctx, t.username)
	switch {
	case err == nil:
		prv, err := evm.ParsePrivateKey(w.PrivateKey)
		if err != nil {
			return fmt.Errorf("%w, wallets:%s: %v", model.ErrCorruptRecord, t.username, err)
		}
		t.prv = prv
		t.account, _ = evm.GetAddress(prv)
		if !strings.EqualFold(t.account.Hex(), w.Address) {
			logger.Warnf("[SwapService] 钱包地址与私钥不一致, username: %s, stored: %s, derived: %s", t.username, w.Address, t.account.Hex())
		}
	case model.IsNotFound(err):
		missing = append(missing, MissingWallet)
	default:
		return storeError("wallet", err)
	}

	if len(missing) > 0 {
		return &MissingConfigError{Items: missing}
	}
	return nil
}

func storeError(op string, err error) error {
	if errors.Is(err, model.ErrCorruptRecord) {
		return err
	}
	return transportError(op, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return "missing_config"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, ErrChainRejected):
		return "rejected"
	case errors.Is(err, ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, ErrTradeInProgress):
		return "busy"
	}
	return "error"
}
