package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"

	"github.com/shopspring/decimal"
)

type SettingKind string

const (
	SettingGasBuffer SettingKind = "gas_buffer"
	SettingSlippage  SettingKind = "slippage"
)

// field 记录中的JSON字段名
func (k SettingKind) field() string {
	switch k {
	case SettingGasBuffer:
		return "gasBuffer"
	case SettingSlippage:
		return "slippage"
	}
	return string(k)
}

type SettingsModel struct {
	store kvstore.Store
}

func NewSettingsModel(store kvstore.Store) *SettingsModel {
	return &SettingsModel{store: store}
}

func settingKey(username string, kind SettingKind) string {
	return fmt.Sprintf("settings:%s:%s", kind, username)
}

func (m *SettingsModel) Save(ctx context.Context, username string, kind SettingKind, value decimal.Decimal) error {
	data, err := json.Marshal(map[string]json.Number{
		kind.field(): json.Number(value.String()),
	})
	if err != nil {
		return err
	}
	return m.store.Set(ctx, settingKey(username, kind), string(data))
}

func (m *SettingsModel) Find(ctx context.Context, username string, kind SettingKind) (decimal.Decimal, error) {
	key := settingKey(username, kind)
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	var record map[string]json.Number
	if err = json.Unmarshal([]byte(val), &record); err != nil {
		return decimal.Zero, corrupt(key, err)
	}

	num, ok := record[kind.field()]
	if !ok {
		return decimal.Zero, corrupt(key, fmt.Errorf("missing field %s", kind.field()))
	}
	value, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, corrupt(key, err)
	}
	return value, nil
}

func (m *SettingsModel) FindGasBuffer(ctx context.Context, username string) (decimal.Decimal, error) {
	return m.Find(ctx, username, SettingGasBuffer)
}

func (m *SettingsModel) FindSlippage(ctx context.Context, username string) (decimal.Decimal, error) {
	return m.Find(ctx, username, SettingSlippage)
}
