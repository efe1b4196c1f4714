package model

import (
	"context"
	"errors"
	"strconv"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"

	"github.com/ethereum/go-ethereum/common"
)

type NonceModel struct {
	store kvstore.Store
}

func NewNonceModel(store kvstore.Store) *NonceModel {
	return &NonceModel{store: store}
}

func nonceKey(account string) string {
	return "nonce:" + common.HexToAddress(account).Hex()
}

func (m *NonceModel) Save(ctx context.Context, account string, n uint64) error {
	return m.store.Set(ctx, nonceKey(account), strconv.FormatUint(n, 10))
}

func (m *NonceModel) FindOne(ctx context.Context, account string) (uint64, error) {
	key := nonceKey(account)
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, corrupt(key, err)
	}
	return n, nil
}
