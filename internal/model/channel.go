package model

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"

	"github.com/ethereum/go-ethereum/common"
)

const channelPrefix = "channel:"

type ChannelBinding struct {
	ChatId          int64
	ContractAddress string
}

type ChannelModel struct {
	store kvstore.Store
}

func NewChannelModel(store kvstore.Store) *ChannelModel {
	return &ChannelModel{store: store}
}

func channelKey(chatId int64) string {
	return channelPrefix + strconv.FormatInt(chatId, 10)
}

func (m *ChannelModel) Save(ctx context.Context, chatId int64, contractAddress string) error {
	return m.store.Set(ctx, channelKey(chatId), contractAddress)
}

func (m *ChannelModel) FindByChatId(ctx context.Context, chatId int64) (string, error) {
	key := channelKey(chatId)
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !common.IsHexAddress(val) {
		return "", corrupt(key, errors.New("invalid contract address"))
	}
	return val, nil
}

func (m *ChannelModel) FindAll(ctx context.Context) ([]ChannelBinding, error) {
	keys, err := m.store.Keys(ctx, channelPrefix)
	if err != nil {
		return nil, err
	}

	bindings := make([]ChannelBinding, 0, len(keys))
	for _, key := range keys {
		chatId, err := strconv.ParseInt(strings.TrimPrefix(key, channelPrefix), 10, 64)
		if err != nil {
			continue
		}

		address, err := m.FindByChatId(ctx, chatId)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		bindings = append(bindings, ChannelBinding{ChatId: chatId, ContractAddress: address})
	}
	return bindings, nil
}
