package wallethandler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/telebot/router"
	"github.com/fachebot/evm-genie-bot/internal/utils"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	ConfirmText = "Yes, I confirm"
	CancelText  = "No, cancel"
)

func InitRoutes(svcCtx *svc.ServiceContext, botApi utils.BotApi, r *router.Router) {
	NewWalletHandler(svcCtx, botApi).AddRouter(r)
}

type WalletHandler struct {
	botApi utils.BotApi
	svcCtx *svc.ServiceContext
}

func NewWalletHandler(svcCtx *svc.ServiceContext, botApi utils.BotApi) *WalletHandler {
	return &WalletHandler{botApi: botApi, svcCtx: svcCtx}
}

func (h *WalletHandler) AddRouter(r *router.Router) {
	r.HandleFunc(callback.KindCreate, h.handleCreate)
	r.HandleFunc(callback.KindImport, h.handleImport)
	r.HandleFunc(callback.KindInfo, h.handleInfo)
	r.HandleFunc(callback.KindShowPrivateKey, h.handleShowPrivateKey)
	r.HandleFunc(callback.KindDeleteMessage, h.handleDeleteMessage)

	r.HandlePrompt(session.PromptConfirmCreate, h.handleConfirm)
	r.HandlePrompt(session.PromptConfirmImport, h.handleConfirm)
	r.HandlePrompt(session.PromptPrivateKey, h.handlePrivateKey)
}

func deleteButtonMarkup(sessionId string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("🗑 Delete", callback.KindDeleteMessage, sessionId),
		),
	)
}

// askConfirm 已有钱包时要求确认覆盖
func (h *WalletHandler) askConfirm(req *router.Request, kind session.PromptKind, w *model.Wallet) error {
	action := "create a new wallet"
	if kind == session.PromptConfirmImport {
		action = "import another wallet"
	}

	text := fmt.Sprintf("⚠️ You already have a wallet (`%s`).\n\nIf you %s, the current one will be replaced and its private key is lost unless you saved it.\n\nAre you sure?",
		w.Address, action)
	markup := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ConfirmText)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(CancelText)),
	)
	markup.OneTimeKeyboard = true
	markup.Selective = true

	msg, err := utils.SendMessageWithMarkup(h.botApi, req.ChatId, text, markup)
	if err != nil {
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

func (h *WalletHandler) handleCreate(ctx context.Context, req *router.Request) error {
	w, err := GetUserWallet(ctx, h.svcCtx, req.Session.Username)
	if err != nil {
		return err
	}
	if w != nil {
		return h.askConfirm(req, session.PromptConfirmCreate, w)
	}
	return h.createWallet(ctx, req.ChatId, req.Session.Id, req.Session.Username)
}

func (h *WalletHandler) createWallet(ctx context.Context, chatId int64, sessionId, username string) error {
	w, err := CreateWallet(ctx, h.svcCtx, username)
	if err != nil {
		logger.Errorf("[WalletHandler] 创建钱包失败, username: %s, %v", username, err)
		return err
	}

	logger.Infof("[WalletHandler] 创建钱包, username: %s, account: %s", username, w.Address)
	text := fmt.Sprintf("✅ *Wallet created!*\n\n🔑 *Address:* `%s`\n🔐 *Private key:* `%s`\n\n⚠️ Save your private key somewhere safe, then delete this message.",
		w.Address, w.PrivateKey)
	_, err = utils.SendMessageWithMarkup(h.botApi, chatId, text, deleteButtonMarkup(sessionId))
	return err
}

func (h *WalletHandler) handleImport(ctx context.Context, req *router.Request) error {
	w, err := GetUserWallet(ctx, h.svcCtx, req.Session.Username)
	if err != nil {
		return err
	}
	if w != nil {
		return h.askConfirm(req, session.PromptConfirmImport, w)
	}
	return h.askPrivateKey(req.ChatId, req.Session.Id, req.Session.Username)
}

func (h *WalletHandler) askPrivateKey(chatId int64, sessionId, username string) error {
	msg, err := utils.SendForceReply(h.botApi, chatId, "📥 Reply to this message with the private key of the wallet you want to import.")
	if err != nil {
		return err
	}

	h.svcCtx.Prompts.Set(chatId, session.Prompt{
		Kind:      session.PromptPrivateKey,
		SessionId: sessionId,
		Username:  username,
		MessageId: msg.MessageID,
	})
	return nil
}

func (h *WalletHandler) handleConfirm(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID
	if strings.TrimSpace(msg.Text) != ConfirmText {
		c := tgbotapi.NewMessage(chatId, "👌 Operation cancelled.")
		c.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		_, err := h.botApi.Send(c)
		return err
	}

	c := tgbotapi.NewMessage(chatId, "👍 Confirmed.")
	c.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := h.botApi.Send(c); err != nil {
		logger.Debugf("[WalletHandler] 发送消息失败, %v", err)
	}

	if prompt.Kind == session.PromptConfirmCreate {
		return h.createWallet(ctx, chatId, prompt.SessionId, prompt.Username)
	}
	return h.askPrivateKey(chatId, prompt.SessionId, prompt.Username)
}

func (h *WalletHandler) handlePrivateKey(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID

	// 私钥不保留在聊天记录中
	utils.DeleteMessages(h.botApi, chatId, []int{msg.MessageID, prompt.MessageId})

	w, err := ImportWallet(ctx, h.svcCtx, prompt.Username, msg.Text)
	if errors.Is(err, evm.ErrInvalidPrivateKey) {
		_, err = utils.SendMessage(h.botApi, chatId, "❌ Invalid private key. Please start the import again from the menu.")
		return err
	}
	if err != nil {
		logger.Errorf("[WalletHandler] 导入钱包失败, username: %s, %v", prompt.Username, err)
		return err
	}

	logger.Infof("[WalletHandler] 导入钱包, username: %s, account: %s", prompt.Username, w.Address)
	_, err = utils.SendMessage(h.botApi, chatId, fmt.Sprintf("✅ *Wallet imported!*\n\n🔑 *Address:* `%s`", w.Address))
	return err
}

func (h *WalletHandler) handleInfo(ctx context.Context, req *router.Request) error {
	w, err := GetUserWallet(ctx, h.svcCtx, req.Session.Username)
	if err != nil {
		return err
	}
	if w == nil {
		_, err = utils.SendMessage(h.botApi, req.ChatId, "❗️ You don't have a wallet yet. Create or import one first.")
		return err
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("🔐 Show Private Key", callback.KindShowPrivateKey, req.Session.Id),
		),
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("❌ Close", callback.KindDeleteMessage, req.Session.Id),
		),
	)
	_, err = utils.SendMessageWithMarkup(h.botApi, req.ChatId, formatWalletInfo(ctx, h.svcCtx, w), markup)
	return err
}

func (h *WalletHandler) handleShowPrivateKey(ctx context.Context, req *router.Request) error {
	w, err := GetUserWallet(ctx, h.svcCtx, req.Session.Username)
	if err != nil {
		return err
	}
	if w == nil {
		_, err = utils.SendMessage(h.botApi, req.ChatId, "❗️ You don't have a wallet yet. Create or import one first.")
		return err
	}

	text := fmt.Sprintf("🔐 *Private key:* `%s`\n\n⚠️ Never share it with anyone. Delete this message when you are done.", w.PrivateKey)
	_, err = utils.SendMessageWithMarkup(h.botApi, req.ChatId, text, deleteButtonMarkup(req.Session.Id))
	return err
}

func (h *WalletHandler) handleDeleteMessage(ctx context.Context, req *router.Request) error {
	utils.DeleteMessages(h.botApi, req.ChatId, []int{req.MessageId()})
	return nil
}
