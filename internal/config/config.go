package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Chain struct {
	Id             int64  `yaml:"Id"`
	RpcUrl         string `yaml:"RpcUrl"`
	NativeCurrency struct {
		Symbol   string `yaml:"Symbol"`
		Decimals uint8  `yaml:"Decimals"`
	} `yaml:"NativeCurrency"`
	Router              string        `yaml:"Router"`
	Factory             string        `yaml:"Factory"`
	WETH                string        `yaml:"WETH"`
	DeadlineMinutes     int           `yaml:"DeadlineMinutes"`
	InfiniteApproval    *bool         `yaml:"InfiniteApproval"`
	ConfirmPollInterval time.Duration `yaml:"ConfirmPollInterval"`
}

func (c *Chain) Validate() error {
	if c.RpcUrl == "" {
		return errors.New("RpcUrl 不能为空")
	}
	for name, addr := range map[string]string{"Router": c.Router, "Factory": c.Factory, "WETH": c.WETH} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s 不是有效地址: %q", name, addr)
		}
	}

	if c.NativeCurrency.Symbol == "" {
		c.NativeCurrency.Symbol = "ETH"
	}
	if c.NativeCurrency.Decimals == 0 {
		c.NativeCurrency.Decimals = 18
	}
	if c.DeadlineMinutes <= 0 {
		c.DeadlineMinutes = 10
	}
	if c.InfiniteApproval == nil {
		enable := true
		c.InfiniteApproval = &enable
	}
	if c.ConfirmPollInterval <= 0 {
		c.ConfirmPollInterval = 3 * time.Second
	}
	return nil
}

func (c *Chain) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

type Store struct {
	Driver      string `yaml:"Driver"`
	RedisUrl    string `yaml:"RedisUrl"`
	LevelDBPath string `yaml:"LevelDBPath"`
	MaxRetries  int    `yaml:"MaxRetries"`
}

func (c *Store) Validate() error {
	if c.Driver == "" {
		c.Driver = "redis"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}

	switch c.Driver {
	case "redis":
		if c.RedisUrl == "" {
			return errors.New("RedisUrl 不能为空")
		}
	case "leveldb":
		if c.LevelDBPath == "" {
			c.LevelDBPath = "data/genie.ldb"
		}
	default:
		return errors.New("Driver 配置枚举值范围: redis/leveldb")
	}
	return nil
}

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type TelegramBot struct {
	Debug       bool   `yaml:"Debug"`
	ApiToken    string `yaml:"ApiToken"`
	BannerImage string `yaml:"BannerImage"`
}

type Session struct {
	TTL            time.Duration `yaml:"TTL"`
	PromptTTL      time.Duration `yaml:"PromptTTL"`
	CallbackWindow time.Duration `yaml:"CallbackWindow"`
}

func (c *Session) Validate() {
	if c.PromptTTL <= 0 {
		c.PromptTTL = 5 * time.Minute
	}
	if c.CallbackWindow <= 0 {
		c.CallbackWindow = 5 * time.Second
	}
}

type Server struct {
	Port int `yaml:"Port"`
}

type Log struct {
	Level      string `yaml:"Level"`
	File       string `yaml:"File"`
	MaxSizeMB  int    `yaml:"MaxSizeMB"`
	MaxBackups int    `yaml:"MaxBackups"`
	MaxAgeDays int    `yaml:"MaxAgeDays"`
}

func (c *Log) Validate() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 7
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

type PriceApi struct {
	CoinGeckoUrl string        `yaml:"CoinGeckoUrl"`
	HoneypotUrl  string        `yaml:"HoneypotUrl"`
	CacheTTL     time.Duration `yaml:"CacheTTL"`
}

func (c *PriceApi) Validate() {
	if c.CoinGeckoUrl == "" {
		c.CoinGeckoUrl = "https://api.coingecko.com"
	}
	if c.HoneypotUrl == "" {
		c.HoneypotUrl = "https://api.honeypot.is"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
}

type Config struct {
	Chain       Chain       `yaml:"Chain"`
	Store       Store       `yaml:"Store"`
	Sock5Proxy  Sock5Proxy  `yaml:"Sock5Proxy"`
	TelegramBot TelegramBot `yaml:"TelegramBot"`
	Session     Session     `yaml:"Session"`
	Server      Server      `yaml:"Server"`
	Log         Log         `yaml:"Log"`
	PriceApi    PriceApi    `yaml:"PriceApi"`
}

// applyEnv 环境变量优先于配置文件
func (c *Config) applyEnv() error {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.TelegramBot.ApiToken = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Store.RedisUrl = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RpcUrl = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT 环境变量无效: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func Parse(data []byte) (*Config, error) {
	var c Config
	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}

	if err = c.applyEnv(); err != nil {
		return nil, err
	}

	if c.TelegramBot.ApiToken == "" {
		return nil, errors.New("TelegramBot.ApiToken 不能为空")
	}
	if err = c.Chain.Validate(); err != nil {
		return nil, fmt.Errorf("Chain配置错误: %w", err)
	}
	if err = c.Store.Validate(); err != nil {
		return nil, fmt.Errorf("Store配置错误: %w", err)
	}
	c.Session.Validate()
	c.PriceApi.Validate()
	c.Log.Validate()
	if c.Server.Port <= 0 {
		c.Server.Port = 3000
	}

	return &c, nil
}

func LoadFromFile(filename string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
