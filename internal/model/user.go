package model

import (
	"context"
	"errors"
	"strconv"

	"github.com/fachebot/evm-genie-bot/internal/kvstore"
)

// UserModel 用户名到私聊会话ID的映射
type UserModel struct {
	store kvstore.Store
}

func NewUserModel(store kvstore.Store) *UserModel {
	return &UserModel{store: store}
}

func userChatKey(username string) string {
	return "chatID:" + username
}

func (m *UserModel) SaveChatId(ctx context.Context, username string, chatId int64) error {
	return m.store.Set(ctx, userChatKey(username), strconv.FormatInt(chatId, 10))
}

func (m *UserModel) FindChatId(ctx context.Context, username string) (int64, error) {
	key := userChatKey(username)
	val, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	chatId, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, corrupt(key, err)
	}
	return chatId, nil
}
