package utils

import (
	"time"

	"github.com/fachebot/evm-genie-bot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotApi 机器人接口, *tgbotapi.BotAPI 满足该接口
type BotApi interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

func EscapeMarkdown(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, text)
}

func SendMessage(botApi BotApi, chatId int64, text string) (tgbotapi.Message, error) {
	c := tgbotapi.NewMessage(chatId, text)
	c.ParseMode = tgbotapi.ModeMarkdown
	c.DisableWebPagePreview = true
	return botApi.Send(c)
}

func SendPlainMessage(botApi BotApi, chatId int64, text string) (tgbotapi.Message, error) {
	c := tgbotapi.NewMessage(chatId, text)
	c.DisableWebPagePreview = true
	return botApi.Send(c)
}

func SendMessageWithMarkup(botApi BotApi, chatId int64, text string, markup any) (tgbotapi.Message, error) {
	c := tgbotapi.NewMessage(chatId, text)
	c.ParseMode = tgbotapi.ModeMarkdown
	c.DisableWebPagePreview = true
	c.ReplyMarkup = markup
	return botApi.Send(c)
}

// SendForceReply 发送强制回复提示
func SendForceReply(botApi BotApi, chatId int64, text string) (tgbotapi.Message, error) {
	c := tgbotapi.NewMessage(chatId, text)
	c.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true, Selective: true}
	return botApi.Send(c)
}

func SendPhoto(botApi BotApi, chatId int64, photo string, caption string, markup any) (tgbotapi.Message, error) {
	c := tgbotapi.NewPhoto(chatId, tgbotapi.FilePath(photo))
	c.Caption = caption
	c.ParseMode = tgbotapi.ModeMarkdown
	c.ReplyMarkup = markup
	return botApi.Send(c)
}

func ReplyMessage(botApi BotApi, update tgbotapi.Update, text string, markup any) (tgbotapi.Message, error) {
	var chatId int64
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		chatId = update.CallbackQuery.Message.Chat.ID
	} else if update.Message != nil {
		chatId = update.Message.Chat.ID
	}

	if markup == nil {
		return SendMessage(botApi, chatId, text)
	}
	return SendMessageWithMarkup(botApi, chatId, text, markup)
}

func DeleteMessages(botApi BotApi, chatId int64, messageIds []int) {
	for _, messageId := range messageIds {
		if messageId == 0 {
			continue
		}
		_, err := botApi.Request(tgbotapi.NewDeleteMessage(chatId, messageId))
		if err != nil {
			logger.Debugf("[DeleteMessages] 删除消息失败, chat: %d, message: %d, %v", chatId, messageId, err)
		}
	}
}

func SendMessageAndDelayDeletion(botApi BotApi, chatId int64, text string, delay time.Duration) {
	msg, err := SendPlainMessage(botApi, chatId, text)
	if err != nil {
		logger.Debugf("[SendMessageAndDelayDeletion] 发送消息失败, chat: %d, %v", chatId, err)
		return
	}

	time.AfterFunc(delay, func() {
		DeleteMessages(botApi, chatId, []int{msg.MessageID})
	})
}

// EditMessage 原地更新文本消息和按钮, messageId为0时发送新消息
func EditMessage(botApi BotApi, chatId int64, messageId int, text string, markup tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	if messageId == 0 {
		return SendMessageWithMarkup(botApi, chatId, text, markup)
	}

	c := tgbotapi.NewEditMessageTextAndMarkup(chatId, messageId, text, markup)
	c.ParseMode = tgbotapi.ModeMarkdown
	c.DisableWebPagePreview = true
	return botApi.Send(c)
}
