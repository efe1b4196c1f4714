package model

import (
	"context"
	"testing"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) kvstore.Store {
	t.Helper()
	store, err := kvstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type prefixSealer struct{}

func (prefixSealer) Seal(plain string) (string, error)  { return "sealed:" + plain, nil }
func (prefixSealer) Open(sealed string) (string, error) { return sealed[len("sealed:"):], nil }

func TestWalletModel(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := NewWalletModel(store, nil)

	_, err := m.FindByUsername(ctx, "alice")
	require.ErrorIs(t, err, ErrNotFound)

	w := Wallet{Address: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", PrivateKey: "0xabc"}
	require.NoError(t, m.Save(ctx, "alice", w))

	raw, err := store.Get(ctx, "wallets:alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0x71C7656EC7ab88b098defB751B7401B5f6d8976F","privateKey":"0xabc"}`, raw)

	got, err := m.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, w, *got)
}

func TestWalletModelSealed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := NewWalletModel(store, prefixSealer{})

	require.NoError(t, m.Save(ctx, "bob", Wallet{Address: "0x1", PrivateKey: "0xdef"}))
	raw, err := store.Get(ctx, "wallets:bob")
	require.NoError(t, err)
	assert.Contains(t, raw, "sealed:0xdef")

	got, err := m.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "0xdef", got.PrivateKey)
}

func TestWalletModelCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Set(ctx, "wallets:carol", "{not json"))

	_, err := NewWalletModel(store, nil).FindByUsername(ctx, "carol")
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestSettingsModel(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := NewSettingsModel(store)

	_, err := m.FindGasBuffer(ctx, "alice")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Save(ctx, "alice", SettingGasBuffer, decimal.NewFromInt(20)))
	require.NoError(t, m.Save(ctx, "alice", SettingSlippage, decimal.RequireFromString("2.5")))

	raw, err := store.Get(ctx, "settings:gas_buffer:alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"gasBuffer":20}`, raw)

	gas, err := m.FindGasBuffer(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, gas.Equal(decimal.NewFromInt(20)))

	slip, err := m.FindSlippage(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, slip.Equal(decimal.RequireFromString("2.5")))
}

func TestSettingsModelLegacyRecords(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := NewSettingsModel(store)

	require.NoError(t, store.Set(ctx, "settings:slippage:bob", `{"slippage":"5"}`))
	slip, err := m.FindSlippage(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, slip.Equal(decimal.NewFromInt(5)))

	require.NoError(t, store.Set(ctx, "settings:gas_buffer:bob", `{"other":1}`))
	_, err = m.FindGasBuffer(ctx, "bob")
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestChannelModel(t *testing.T) {
	ctx := context.Background()
	m := NewChannelModel(newStore(t))

	_, err := m.FindByChatId(ctx, -100)
	require.ErrorIs(t, err, ErrNotFound)

	token := "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	require.NoError(t, m.Save(ctx, -100, token))
	require.NoError(t, m.Save(ctx, -200, token))

	got, err := m.FindByChatId(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	all, err := m.FindAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ChannelBinding{
		{ChatId: -100, ContractAddress: token},
		{ChatId: -200, ContractAddress: token},
	}, all)
}

func TestUserAndNonceModel(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	users := NewUserModel(store)
	require.NoError(t, users.SaveChatId(ctx, "alice", 12345))
	chatId, err := users.FindChatId(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), chatId)

	nonces := NewNonceModel(store)
	_, err = nonces.FindOne(ctx, "0x71c7656ec7ab88b098defb751b7401b5f6d8976f")
	require.True(t, IsNotFound(err))

	require.NoError(t, nonces.Save(ctx, "0x71c7656ec7ab88b098defb751b7401b5f6d8976f", 7))
	n, err := nonces.FindOne(ctx, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}
