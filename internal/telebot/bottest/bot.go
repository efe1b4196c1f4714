// Package bottest 记录发送内容的机器人替身, 供处理器测试使用
package bottest

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	mutex         sync.Mutex
	nextMessageId int
	sent          []tgbotapi.Chattable
	requests      []tgbotapi.Chattable
	members       map[int64]string
}

func NewBot() *Bot {
	return &Bot{nextMessageId: 100, members: make(map[int64]string)}
}

// SetMemberStatus 设置用户在群组中的身份, 例如 administrator/creator/member
func (b *Bot) SetMemberStatus(userId int64, status string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.members[userId] = status
}

func (b *Bot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextMessageId++
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: b.nextMessageId}, nil
}

func (b *Bot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *Bot) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	status, ok := b.members[config.UserID]
	if !ok {
		status = "member"
	}
	return tgbotapi.ChatMember{User: &tgbotapi.User{ID: config.UserID}, Status: status}, nil
}

func (b *Bot) Sent() []tgbotapi.Chattable {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]tgbotapi.Chattable(nil), b.sent...)
}

func (b *Bot) Requests() []tgbotapi.Chattable {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]tgbotapi.Chattable(nil), b.requests...)
}

// Texts 已发送消息的文本, 图片取说明文字
func (b *Bot) Texts() []string {
	var texts []string
	for _, c := range b.Sent() {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			texts = append(texts, m.Text)
		case tgbotapi.PhotoConfig:
			texts = append(texts, m.Caption)
		}
	}
	return texts
}

func (b *Bot) LastText() string {
	texts := b.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// DeletedMessages 被删除的消息ID
func (b *Bot) DeletedMessages() []int {
	var ids []int
	for _, c := range b.Requests() {
		if d, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			ids = append(ids, d.MessageID)
		}
	}
	return ids
}
