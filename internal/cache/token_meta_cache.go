package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/fachebot/evm-genie-bot/internal/utils/evm"
)

type TokenMeta struct {
	Name     string
	Symbol   string
	Decimals uint8
}

// TokenMetaCache 代币元数据不会变化, 常驻内存
type TokenMetaCache struct {
	client       evm.Client
	tokenMetaMap sync.Map
}

func NewTokenMetaCache(client evm.Client) *TokenMetaCache {
	return &TokenMetaCache{client: client}
}

func (c *TokenMetaCache) GetTokenMeta(ctx context.Context, tokenAddress string) (TokenMeta, error) {
	key := strings.ToLower(tokenAddress)
	if val, ok := c.tokenMetaMap.Load(key); ok {
		return val.(TokenMeta), nil
	}

	tokenmeta, err := evm.GetTokenMeta(ctx, c.client, tokenAddress)
	if err != nil {
		return TokenMeta{}, err
	}

	ret := TokenMeta{
		Name:     tokenmeta.Name,
		Symbol:   tokenmeta.Symbol,
		Decimals: tokenmeta.Decimals,
	}
	c.tokenMetaMap.Store(key, ret)

	return ret, nil
}
