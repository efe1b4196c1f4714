package svc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/fachebot/evm-genie-bot/internal/cache"
	"github.com/fachebot/evm-genie-bot/internal/config"
	"github.com/fachebot/evm-genie-bot/internal/datapi/coingecko"
	"github.com/fachebot/evm-genie-bot/internal/datapi/honeypot"
	"github.com/fachebot/evm-genie-bot/internal/dex/uniswapv2"
	"github.com/fachebot/evm-genie-bot/internal/eth"
	"github.com/fachebot/evm-genie-bot/internal/kvstore"
	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/metrics"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/swap"
	"github.com/fachebot/evm-genie-bot/internal/utils"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	HashEncoder    *utils.HashEncoder
	Store          kvstore.Store
	BotApi         *tgbotapi.BotAPI
	BotUserInfo    *tgbotapi.User
	TransportProxy *http.Transport
	EthClient      evm.Client
	Router         *uniswapv2.Router
	Metrics        *metrics.BotMetrics
	CoinGecko      *coingecko.Client
	Honeypot       *honeypot.Client
	TokenMetaCache *cache.TokenMetaCache
	PriceCache     *cache.PriceCache
	Sessions       *session.Registry
	CallbackDedup  *session.CallbackDedup
	Prompts        *session.PromptStore
	WalletModel    *model.WalletModel
	SettingsModel  *model.SettingsModel
	ChannelModel   *model.ChannelModel
	UserModel      *model.UserModel
	NonceModel     *model.NonceModel
	NonceManager   *eth.NonceManager
	SwapService    *swap.SwapService
}

func newStore(ctx context.Context, c config.Store) (kvstore.Store, error) {
	switch c.Driver {
	case "leveldb":
		return kvstore.NewLevelDBStore(c.LevelDBPath)
	default:
		return kvstore.NewRedisStore(ctx, c.RedisUrl, c.MaxRetries)
	}
}

// NewServiceContext 创建除电报机器人以外的全部依赖, 测试可直接使用
func NewServiceContext(c *config.Config, store kvstore.Store, ethClient evm.Client, transportProxy *http.Transport) *ServiceContext {
	// 创建hash编码器
	salt := os.Getenv("GENIE_HASH_SALT")
	if salt == "" {
		salt = "Qm7vR2x!pL9s]Wc4=tH8e?Zk1nB6yDfJ"
		logger.Debugf("环境变量 GENIE_HASH_SALT 未设置")
	}
	hashEncoder, err := utils.NewHashEncoder(salt)
	if err != nil {
		logger.Fatalf("创建Hash编码器失败, %v", err)
	}

	// 私钥加密
	var sealer model.KeySealer
	if secret := os.Getenv("GENIE_KEY_SECRET"); secret != "" {
		keyCipher, err := utils.NewKeyCipher(secret)
		if err != nil {
			logger.Fatalf("创建私钥加密器失败, %v", err)
		}
		sealer = keyCipher
	} else {
		logger.Warnf("环境变量 GENIE_KEY_SECRET 未设置, 私钥将以明文保存")
	}

	botMetrics := metrics.Bot()
	coinGecko := coingecko.NewClient(c.PriceApi.CoinGeckoUrl, transportProxy)
	priceCache := cache.NewPriceCache(coinGecko.GetEthUsdPrice, c.PriceApi.CacheTTL)
	tokenMetaCache := cache.NewTokenMetaCache(ethClient)
	registry := session.NewRegistry(hashEncoder, c.Session.TTL)

	router := uniswapv2.NewRouter(
		ethClient,
		common.HexToAddress(c.Chain.Router),
		common.HexToAddress(c.Chain.Factory),
		common.HexToAddress(c.Chain.WETH),
	)

	walletModel := model.NewWalletModel(store, sealer)
	settingsModel := model.NewSettingsModel(store)
	channelModel := model.NewChannelModel(store)
	nonceModel := model.NewNonceModel(store)
	nonceManager := eth.NewNonceManager(nonceModel, ethClient)

	swapService := swap.NewSwapService(
		ethClient,
		router,
		nonceManager,
		swap.Models{Wallet: walletModel, Settings: settingsModel, Channel: channelModel},
		registry,
		tokenMetaCache,
		priceCache,
		botMetrics,
		swap.Options{
			ChainId:          c.Chain.Id,
			InfiniteApproval: c.Chain.InfiniteApproval == nil || *c.Chain.InfiniteApproval,
			Deadline:         c.Chain.Deadline(),
			PollInterval:     c.Chain.ConfirmPollInterval,
		},
	)

	return &ServiceContext{
		Config:         c,
		HashEncoder:    hashEncoder,
		Store:          store,
		TransportProxy: transportProxy,
		EthClient:      ethClient,
		Router:         router,
		Metrics:        botMetrics,
		CoinGecko:      coinGecko,
		Honeypot:       honeypot.NewClient(c.PriceApi.HoneypotUrl, c.Chain.Id, transportProxy),
		TokenMetaCache: tokenMetaCache,
		PriceCache:     priceCache,
		Sessions:       registry,
		CallbackDedup:  session.NewCallbackDedup(c.Session.CallbackWindow),
		Prompts:        session.NewPromptStore(c.Session.PromptTTL),
		WalletModel:    walletModel,
		SettingsModel:  settingsModel,
		ChannelModel:   channelModel,
		UserModel:      model.NewUserModel(store),
		NonceModel:     nonceModel,
		NonceManager:   nonceManager,
		SwapService:    swapService,
	}
}

// NewTransportProxy 未启用代理时返回nil
func NewTransportProxy(c config.Sock5Proxy) (*http.Transport, error) {
	if !c.Enable {
		return nil, nil
	}

	socks5Proxy := fmt.Sprintf("%s:%d", c.Host, c.Port)
	dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
	if err != nil {
		return nil, err
	}

	return &http.Transport{
		Dial:            dialer.Dial,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}, nil
}

// MustNewServiceContext 连接存储和电报机器人, 失败直接退出
func MustNewServiceContext(c *config.Config, ethClient evm.Client) *ServiceContext {
	// 创建SOCKS5代理
	transportProxy, err := NewTransportProxy(c.Sock5Proxy)
	if err != nil {
		logger.Fatalf("创建SOCKS5代理失败, %v", err)
	}

	// 连接键值存储
	store, err := newStore(context.Background(), c.Store)
	if err != nil {
		logger.Fatalf("连接存储失败, driver: %s, %v", c.Store.Driver, err)
	}

	svcCtx := NewServiceContext(c, store, ethClient, transportProxy)

	// 创建电报机器人
	tgHttpClient := new(http.Client)
	if transportProxy != nil {
		tgHttpClient.Transport = transportProxy
	}
	botApi, err := tgbotapi.NewBotAPIWithClient(c.TelegramBot.ApiToken, tgbotapi.APIEndpoint, tgHttpClient)
	if err != nil {
		logger.Fatalf("创建电报机器人失败, %v", err)
	}
	botApi.Debug = c.TelegramBot.Debug

	botUserInfo, err := botApi.GetMe()
	if err != nil {
		logger.Fatalf("获取电报机器人信息失败, %v", err)
	}

	svcCtx.BotApi = botApi
	svcCtx.BotUserInfo = &botUserInfo
	return svcCtx
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.Store.Close(); err != nil {
		logger.Errorf("关闭存储失败, %v", err)
	}
}
