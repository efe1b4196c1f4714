package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

type PriceFetcher func(ctx context.Context) (decimal.Decimal, error)

// PriceCache 缓存原生币美元价格, 避免频繁请求行情接口
type PriceCache struct {
	fetch PriceFetcher
	store *cache.Cache
}

const nativePriceKey = "native"

func NewPriceCache(fetch PriceFetcher, ttl time.Duration) *PriceCache {
	return &PriceCache{fetch: fetch, store: cache.New(ttl, ttl*2)}
}

func (c *PriceCache) NativeUSD(ctx context.Context) (decimal.Decimal, error) {
	if val, ok := c.store.Get(nativePriceKey); ok {
		return val.(decimal.Decimal), nil
	}

	price, err := c.fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	c.store.SetDefault(nativePriceKey, price)
	return price, nil
}
