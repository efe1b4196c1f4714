package telebot

import (
	"context"
	"fmt"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/telebot/handler/settingshandler"
	"github.com/fachebot/evm-genie-bot/internal/telebot/handler/tradehandler"
	"github.com/fachebot/evm-genie-bot/internal/telebot/handler/wallethandler"
	"github.com/fachebot/evm-genie-bot/internal/telebot/router"
	"github.com/fachebot/evm-genie-bot/internal/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// updateSource 长轮询接口, 只有真实的 BotAPI 实现
type updateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type TeleBot struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	svcCtx   *svc.ServiceContext
	botApi   utils.BotApi
	updates  updateSource
	router   *router.Router
	trade    *tradehandler.TradeHandler
}

func NewTeleBot(svcCtx *svc.ServiceContext) (*TeleBot, error) {
	if svcCtx.BotApi == nil {
		return nil, fmt.Errorf("bot api not initialized")
	}
	return newTeleBot(svcCtx, svcCtx.BotApi, svcCtx.BotApi), nil
}

func newTeleBot(svcCtx *svc.ServiceContext, botApi utils.BotApi, updates updateSource) *TeleBot {
	ctx, cancel := context.WithCancel(context.Background())
	botService := &TeleBot{
		ctx:     ctx,
		cancel:  cancel,
		svcCtx:  svcCtx,
		botApi:  botApi,
		updates: updates,
		router:  router.NewRouter(svcCtx.CallbackDedup, svcCtx.Sessions, svcCtx.Metrics),
	}

	botService.initRoutes()
	return botService
}

func (s *TeleBot) initRoutes() {
	settingshandler.InitRoutes(s.svcCtx, s.botApi, s.router)
	wallethandler.InitRoutes(s.svcCtx, s.botApi, s.router)
	s.trade = tradehandler.InitRoutes(s.svcCtx, s.botApi, s.router)
}

func (s *TeleBot) Stop() {
	if s.stopChan == nil {
		return
	}

	logger.Infof("[TeleBot] 准备停止服务")

	s.updates.StopReceivingUpdates()
	s.cancel()

	<-s.stopChan
	close(s.stopChan)
	s.stopChan = nil

	logger.Infof("[TeleBot] 服务已经停止")
}

func (s *TeleBot) Start() {
	if s.stopChan != nil {
		return
	}

	s.stopChan = make(chan struct{})
	logger.Infof("[TeleBot] 开始运行服务")
	go s.run()
}

func (s *TeleBot) handleStart(msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	if username == "" {
		_, err := utils.SendMessage(s.botApi, chatId, "❌ You haven't set up a Telegram Username.")
		return err
	}

	// 记录私聊ID, 群组交易的进度发到这里
	if err := s.svcCtx.UserModel.SaveChatId(s.ctx, username, chatId); err != nil {
		logger.Errorf("[TeleBot] 保存用户聊天ID失败, username: %s, %v", username, err)
	}

	w, err := wallethandler.GetUserWallet(s.ctx, s.svcCtx, username)
	if err != nil {
		return err
	}

	sess, err := s.svcCtx.Sessions.CreateSession(chatId, username)
	if err != nil {
		return err
	}

	safeUsername := utils.EscapeMarkdown(username)
	text := fmt.Sprintf("🧞‍♂️ Welcome to the Genie Wish Granter Bot, @%s! 🧞‍♂️\n\n", safeUsername)
	if w != nil {
		text += fmt.Sprintf("🔑 *Wallet Address:* `%s`\n\n", utils.ShortenAddress(w.Address))
	} else {
		text += "❗️ *Warning:* Your wallet is not set up yet. Please set it up for seamless transactions.\n\n"
	}
	text += fmt.Sprintf("🌐 *Network:* %s", utils.GetNetworkName(s.svcCtx.Config.Chain.Id))

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("🌟 Create Wallet", callback.KindCreate, sess.Id),
			callback.Button("📥 Import Wallet", callback.KindImport, sess.Id),
		),
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("💼 Wallet Information", callback.KindInfo, sess.Id),
			callback.Button("⚙️ Settings", callback.KindSettings, sess.Id),
		),
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("📉 Sell", callback.KindSell, sess.Id),
		),
	)

	banner := s.svcCtx.Config.TelegramBot.BannerImage
	if banner != "" {
		if _, err = utils.SendPhoto(s.botApi, chatId, banner, text, markup); err == nil {
			return nil
		}
		logger.Warnf("[TeleBot] 发送图片失败, chat: %d, %v", chatId, err)
	}
	_, err = utils.SendMessageWithMarkup(s.botApi, chatId, text, markup)
	return err
}

func (s *TeleBot) handleCommand(msg *tgbotapi.Message) error {
	command := msg.Command()
	switch {
	case command == "start" && msg.Chat.IsPrivate():
		return s.handleStart(msg)
	case strings.EqualFold(command, "genie"):
		return s.trade.HandleGenie(s.ctx, msg)
	case strings.EqualFold(command, "setGenie"):
		return s.trade.HandleSetGenie(s.ctx, msg)
	}
	return nil
}

// handleText 私聊文本优先作为待回复提示的答案
func (s *TeleBot) handleText(msg *tgbotapi.Message) error {
	if !msg.Chat.IsPrivate() {
		return nil
	}

	if prompt, ok := s.svcCtx.Prompts.Take(msg.Chat.ID); ok {
		return s.router.RoutePrompt(s.ctx, prompt, msg)
	}

	_, err := s.trade.HandleTokenCheck(s.ctx, msg)
	return err
}

func (s *TeleBot) handleUpdate(update tgbotapi.Update) {
	// 处理文本消息
	if msg := update.Message; msg != nil && msg.Chat != nil {
		logger.Debugf("[TeleBot] 收到新消息, chat: %d, title: %s, type: %s",
			msg.Chat.ID, msg.Chat.Title, msg.Chat.Type)

		var err error
		if msg.IsCommand() {
			err = s.handleCommand(msg)
		} else if msg.Text != "" {
			err = s.handleText(msg)
		}
		if err != nil {
			logger.Errorf("[TeleBot] 处理消息失败, chat: %d, %v", msg.Chat.ID, err)
		}
		return
	}

	// 处理回调查询
	if update.CallbackQuery != nil {
		routed, err := s.router.Route(s.ctx, update)
		if err == nil {
			cb := tgbotapi.NewCallback(update.CallbackQuery.ID, "")
			if _, err = s.botApi.Request(cb); err != nil {
				logger.Debugf("[TeleBot] 回答 CallbackQuery 失败, id: %s, %v", update.CallbackQuery.ID, err)
			}
		} else {
			logger.Errorf("[TeleBot] 处理 CallbackQuery 失败, routed: %v, %v", routed, err)
			cb := tgbotapi.NewCallbackWithAlert(update.CallbackQuery.ID, "Operation failed, please try again later")
			if _, err = s.botApi.Request(cb); err != nil {
				logger.Debugf("[TeleBot] 回答 CallbackQuery 失败, id: %s, %v", update.CallbackQuery.ID, err)
			}
		}
	}
}

func (s *TeleBot) run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 5
	updates := s.updates.GetUpdatesChan(u)

	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("[TeleBot] 上下文已取消")

			s.stopChan <- struct{}{}

			return
		case update := <-updates:
			s.handleUpdate(update)
		}
	}
}
