package model

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"
)

type Wallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
}

// KeySealer 私钥落盘加密
type KeySealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type WalletModel struct {
	store  kvstore.Store
	sealer KeySealer
}

func NewWalletModel(store kvstore.Store, sealer KeySealer) *WalletModel {
	return &WalletModel{store: store, sealer: sealer}
}

func walletKey(username string) string {
	return "wallets:" + username
}

func (m *WalletModel) Save(ctx context.Context, username string, w Wallet) error {
	if m.sealer != nil {
		sealed, err := m.sealer.Seal(w.PrivateKey)
		if err != nil {
			return err
		}
		w.PrivateKey = sealed
	}

	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, walletKey(username), string(data))
}

func (m *WalletModel) FindByUsername(ctx context.Context, username string) (*Wallet, error) {
	key := walletKey(username)
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var w Wallet
	if err = json.Unmarshal([]byte(val), &w); err != nil {
		return nil, corrupt(key, err)
	}
	if w.Address == "" || w.PrivateKey == "" {
		return nil, corrupt(key, errors.New("missing address or privateKey"))
	}

	if m.sealer != nil {
		w.PrivateKey, err = m.sealer.Open(w.PrivateKey)
		if err != nil {
			return nil, corrupt(key, err)
		}
	}
	return &w, nil
}
