package settingshandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/telebot/router"
	"github.com/fachebot/evm-genie-bot/internal/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const noticeDelay = 3 * time.Second

func InitRoutes(svcCtx *svc.ServiceContext, botApi utils.BotApi, r *router.Router) {
	NewSettingsHomeHandler(svcCtx, botApi).AddRouter(r)
}

type SettingsHomeHandler struct {
	botApi utils.BotApi
	svcCtx *svc.ServiceContext
}

func NewSettingsHomeHandler(svcCtx *svc.ServiceContext, botApi utils.BotApi) *SettingsHomeHandler {
	return &SettingsHomeHandler{botApi: botApi, svcCtx: svcCtx}
}

func (h *SettingsHomeHandler) AddRouter(r *router.Router) {
	r.HandleFunc(callback.KindSettings, h.handleHome)
	r.HandleFunc(callback.KindSetGasBuffer, h.presetMenu(model.SettingGasBuffer))
	r.HandleFunc(callback.KindSetSlippage, h.presetMenu(model.SettingSlippage))
	r.HandleFunc(callback.KindGasBuffer, h.presetValue(model.SettingGasBuffer))
	r.HandleFunc(callback.KindSlippage, h.presetValue(model.SettingSlippage))
	r.HandleFunc(callback.KindCustomGas, h.askCustom(session.PromptCustomGas))
	r.HandleFunc(callback.KindCustomSlippage, h.askCustom(session.PromptCustomSlippage))

	r.HandlePrompt(session.PromptCustomGas, h.handleCustom(model.SettingGasBuffer))
	r.HandlePrompt(session.PromptCustomSlippage, h.handleCustom(model.SettingSlippage))
}

func (h *SettingsHomeHandler) displaySettingsMenu(ctx context.Context, chatId int64, messageId int, sessionId, username string) error {
	record, err := getUserSettings(ctx, h.svcCtx, username)
	if err != nil {
		logger.Errorf("[SettingsHomeHandler] 查询用户设置失败, username: %s, %v", username, err)
		return err
	}

	text, markup := getSettingsMenu(h.svcCtx.Config.Chain.Id, sessionId, record)
	_, err = utils.EditMessage(h.botApi, chatId, messageId, text, markup)
	return err
}

func (h *SettingsHomeHandler) handleHome(ctx context.Context, req *router.Request) error {
	// 从主菜单进入时发送新消息, 从子菜单返回时原地更新
	messageId := req.MessageId()
	if req.Update.CallbackQuery != nil && req.Update.CallbackQuery.Message != nil && req.Update.CallbackQuery.Message.Photo != nil {
		messageId = 0
	}
	return h.displaySettingsMenu(ctx, req.ChatId, messageId, req.Session.Id, req.Session.Username)
}

func (h *SettingsHomeHandler) presetMenu(kind model.SettingKind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		record, err := getUserSettings(ctx, h.svcCtx, req.Session.Username)
		if err != nil {
			return err
		}

		current := record.GasBuffer
		if kind == model.SettingSlippage {
			current = record.Slippage
		}

		text, markup := getPresetMenu(kind, req.Session.Id, current)
		_, err = utils.EditMessage(h.botApi, req.ChatId, req.MessageId(), text, markup)
		return err
	}
}

// saveSetting 校验范围后保存, 输入错误时提示用户并返回 utils 中的校验错误
func (h *SettingsHomeHandler) saveSetting(ctx context.Context, chatId int64, username string, kind model.SettingKind, text string) error {
	value, err := utils.ParsePercent(text)
	if err != nil {
		notice := "⚠️ Please enter a valid number"
		if errors.Is(err, utils.ErrPercentOutRange) {
			notice = "⚠️ Value must be between 1 and 100"
		}
		utils.SendMessageAndDelayDeletion(h.botApi, chatId, notice, noticeDelay)
		return err
	}

	if err = h.svcCtx.SettingsModel.Save(ctx, username, kind, value); err != nil {
		logger.Errorf("[SettingsHomeHandler] 更新配置失败, username: %s, kind: %s, %v", username, kind, err)
		utils.SendMessageAndDelayDeletion(h.botApi, chatId, "❌ Failed to save, please try again later", noticeDelay)
		return err
	}

	logger.Infof("[SettingsHomeHandler] 更新配置, username: %s, kind: %s, value: %s", username, kind, value)
	utils.SendMessageAndDelayDeletion(h.botApi, chatId, fmt.Sprintf("✅ %s set to %s%%", settingLabel(kind), value), noticeDelay)
	return nil
}

func (h *SettingsHomeHandler) presetValue(kind model.SettingKind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		err := h.saveSetting(ctx, req.ChatId, req.Session.Username, kind, req.Payload.Arg(0))
		if errors.Is(err, utils.ErrInvalidNumber) || errors.Is(err, utils.ErrPercentOutRange) {
			return nil
		}
		if err != nil {
			return err
		}
		return h.displaySettingsMenu(ctx, req.ChatId, req.MessageId(), req.Session.Id, req.Session.Username)
	}
}

func (h *SettingsHomeHandler) askCustom(kind session.PromptKind) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		text := "⛽ Reply with your gas buffer percentage (1-100).\n\nExample: 15 means 15%"
		if kind == session.PromptCustomSlippage {
			text = "📉 Reply with your slippage percentage (1-100).\n\nExample: 5 means 5%"
		}

		msg, err := utils.SendForceReply(h.botApi, req.ChatId, text)
		if err != nil {
			logger.Debugf("[SettingsHomeHandler] 发送消息失败, %v", err)
			return err
		}

		h.svcCtx.Prompts.Set(req.ChatId, session.Prompt{
			Kind:      kind,
			SessionId: req.Session.Id,
			Username:  req.Session.Username,
			MessageId: msg.MessageID,
		})
		return nil
	}
}

func (h *SettingsHomeHandler) handleCustom(kind model.SettingKind) router.PromptHandlerFunc {
	return func(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error {
		chatId := msg.Chat.ID
		utils.DeleteMessages(h.botApi, chatId, []int{msg.MessageID, prompt.MessageId})

		err := h.saveSetting(ctx, chatId, prompt.Username, kind, msg.Text)
		if errors.Is(err, utils.ErrInvalidNumber) || errors.Is(err, utils.ErrPercentOutRange) {
			return nil
		}
		if err != nil {
			return err
		}
		return h.displaySettingsMenu(ctx, chatId, 0, prompt.SessionId, prompt.Username)
	}
}
