package tradehandler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/swap"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/telebot/handler/wallethandler"
	"github.com/fachebot/evm-genie-bot/internal/telebot/router"
	"github.com/fachebot/evm-genie-bot/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var sellPresets = []string{"5", "10", "50", "100"}

const customPercent = "custom"

func InitRoutes(svcCtx *svc.ServiceContext, botApi utils.BotApi, r *router.Router) *TradeHandler {
	h := NewTradeHandler(svcCtx, botApi)
	h.AddRouter(r)
	return h
}

type TradeHandler struct {
	botApi utils.BotApi
	svcCtx *svc.ServiceContext
	spawn  func(func())
}

func NewTradeHandler(svcCtx *svc.ServiceContext, botApi utils.BotApi) *TradeHandler {
	return &TradeHandler{
		botApi: botApi,
		svcCtx: svcCtx,
		spawn:  func(f func()) { go f() },
	}
}

func (h *TradeHandler) AddRouter(r *router.Router) {
	r.HandleFunc(callback.KindSell, h.handleSellMenu)
	r.HandleFunc(callback.KindSellSymbol, h.handleSellSymbol)
	r.HandleFunc(callback.KindSellNow, h.handleSellNow)

	r.HandlePrompt(session.PromptCustomSell, h.handleCustomSell)
}

func (h *TradeHandler) nativeSymbol() string {
	return h.svcCtx.Config.Chain.NativeCurrency.Symbol
}

// progressChat 交易进度优先发到用户私聊
func (h *TradeHandler) progressChat(ctx context.Context, username string, fallback int64) int64 {
	chatId, err := h.svcCtx.UserModel.FindChatId(ctx, username)
	if err != nil {
		return fallback
	}
	return chatId
}

func (h *TradeHandler) notifier(chatId int64) swap.Notifier {
	return swap.NotifierFunc(func(ctx context.Context, e swap.Event) {
		text := RenderEvent(e, h.nativeSymbol())
		if text == "" {
			return
		}
		if _, err := utils.SendMessage(h.botApi, chatId, text); err != nil {
			logger.Debugf("[TradeHandler] 发送交易进度失败, chat: %d, request: %s, %v", chatId, e.RequestId, err)
		}
	})
}

func (h *TradeHandler) reportError(chatId int64, side swap.Side, username string, err error) {
	if errors.Is(err, swap.ErrConfigurationMissing) || errors.Is(err, swap.ErrInvalidInput) || errors.Is(err, swap.ErrTradeInProgress) {
		logger.Infof("[TradeHandler] 交易未执行, side: %s, username: %s, %v", side, username, err)
	} else {
		logger.Errorf("[TradeHandler] 交易失败, side: %s, username: %s, %v", side, username, err)
	}

	if _, sendErr := utils.SendMessage(h.botApi, chatId, FormatTradeError(err)); sendErr != nil {
		logger.Debugf("[TradeHandler] 发送消息失败, chat: %d, %v", chatId, sendErr)
	}
}

// HandleGenie /genie <amount>, 在群组中买入绑定代币
func (h *TradeHandler) HandleGenie(ctx context.Context, msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID
	if msg.Chat.IsPrivate() {
		_, err := utils.SendMessage(h.botApi, chatId, "❗️ /genie only works in a group with a Genie token set.")
		return err
	}

	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	if username == "" {
		_, err := utils.SendMessage(h.botApi, chatId, "❌ You haven't set up a Telegram username.")
		return err
	}

	amount, err := utils.ParseAmount(msg.CommandArguments())
	if err != nil {
		_, err = utils.SendMessage(h.botApi, chatId, fmt.Sprintf("Usage: /genie <amount in %s>", h.nativeSymbol()))
		return err
	}

	target := h.progressChat(ctx, username, chatId)
	h.spawn(func() {
		h.runBuy(ctx, chatId, target, username, amount)
	})
	return nil
}

func (h *TradeHandler) runBuy(ctx context.Context, groupChatId, target int64, username string, amount decimal.Decimal) {
	result, err := h.svcCtx.SwapService.Buy(ctx, swap.BuyRequest{
		ChatId:   groupChatId,
		Username: username,
		Amount:   amount,
		Notifier: h.notifier(target),
	})
	if err != nil {
		h.reportError(target, swap.SideBuy, username, err)
		return
	}

	logger.Infof("[TradeHandler] 买入成功, request: %s, username: %s, hash: %s", result.RequestId, username, result.TxHash)
	if result.Summary == nil {
		return
	}

	text := FormatWishGranted(username, result.Summary, h.nativeSymbol())
	banner := h.svcCtx.Config.TelegramBot.BannerImage
	if banner != "" {
		if _, err = utils.SendPhoto(h.botApi, groupChatId, banner, text, nil); err == nil {
			return
		}
		logger.Warnf("[TradeHandler] 发送图片失败, chat: %d, %v", groupChatId, err)
	}
	if _, err = utils.SendMessage(h.botApi, groupChatId, text); err != nil {
		logger.Debugf("[TradeHandler] 发送消息失败, chat: %d, %v", groupChatId, err)
	}
}

// HandleSetGenie /setGenie <address>, 仅群组管理员可用
func (h *TradeHandler) HandleSetGenie(ctx context.Context, msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID
	if msg.Chat.IsPrivate() || msg.From == nil {
		return nil
	}

	address := strings.TrimSpace(msg.CommandArguments())
	if !addressPattern.MatchString(address) {
		_, err := utils.SendMessage(h.botApi, chatId, "Usage: /setGenie <token contract address>")
		return err
	}

	member, err := h.botApi.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatId, UserID: msg.From.ID},
	})
	if err != nil {
		return err
	}
	if !member.IsAdministrator() && !member.IsCreator() {
		_, err = utils.SendMessage(h.botApi, chatId, "Only channel admins can set the contract address.")
		return err
	}

	address = common.HexToAddress(address).Hex()
	if err = h.svcCtx.ChannelModel.Save(ctx, chatId, address); err != nil {
		logger.Errorf("[TradeHandler] 保存群组代币失败, chat: %d, token: %s, %v", chatId, address, err)
		return err
	}

	logger.Infof("[TradeHandler] 设置群组代币, chat: %d, token: %s, by: %s", chatId, address, msg.From.UserName)
	_, err = utils.SendMessage(h.botApi, chatId, fmt.Sprintf("✅ Contract address set to: `%s`", address))
	return err
}

// HandleTokenCheck 私聊中直接发送代币地址时返回安全检查结果
func (h *TradeHandler) HandleTokenCheck(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	address := strings.TrimSpace(msg.Text)
	if !msg.Chat.IsPrivate() || !addressPattern.MatchString(address) {
		return false, nil
	}

	chainId := h.svcCtx.Config.Chain.Id
	links := fmt.Sprintf("[Honeypot](%s) | [GeckoTerminal](%s) | [Explorer](%s)",
		utils.GetHoneypotLink(chainId, address),
		utils.GetGeckoTerminalTokenLink(chainId, address),
		utils.GetBlockExplorerTokenLink(chainId, address))

	report, err := h.svcCtx.Honeypot.IsHoneypot(ctx, address)
	if err != nil {
		logger.Warnf("[TradeHandler] 代币安全检查失败, token: %s, %v", address, err)
		_, err = utils.SendMessage(h.botApi, msg.Chat.ID, "⚠️ Token check is unavailable right now.\n\n"+links)
		return true, err
	}

	_, err = utils.SendMessage(h.botApi, msg.Chat.ID, FormatHoneypotReport(report, links))
	return true, err
}

// sellMenuMarkup 按钮携带快照下标和地址标签, 长度与代币符号无关
func sellMenuMarkup(sessionId string, balances []wallethandler.TokenBalance) tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(balances))
	for i, b := range balances {
		holding := session.Holding{Symbol: b.Symbol, TokenAddress: b.Address}
		label := fmt.Sprintf("%s (%s)", b.Symbol, b.Amount.Truncate(2))
		buttons = append(buttons, callback.Button(label, callback.KindSellSymbol, sessionId, strconv.Itoa(i), holding.Tag()))
	}

	rows := lo.Chunk(buttons, 2)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		callback.Button("❌ Close", callback.KindDeleteMessage, sessionId),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *TradeHandler) handleSellMenu(ctx context.Context, req *router.Request) error {
	username := req.Session.Username
	w, err := wallethandler.GetUserWallet(ctx, h.svcCtx, username)
	if err != nil {
		return err
	}
	if w == nil {
		_, err = utils.SendMessage(h.botApi, req.ChatId, "❗️ You don't have a wallet yet. Create or import one first.")
		return err
	}

	// 每次打开菜单重新扫描, 整体替换持仓快照
	balances := wallethandler.ChannelTokenBalances(ctx, h.svcCtx, w.Address)
	holdings := lo.Map(balances, func(b wallethandler.TokenBalance, _ int) session.Holding {
		return session.Holding{Symbol: b.Symbol, TokenAddress: b.Address}
	})
	h.svcCtx.Sessions.RecordHoldings(username, holdings)

	if len(balances) == 0 {
		_, err = utils.SendMessage(h.botApi, req.ChatId, "🤷 You don't hold any Genie tokens to sell.")
		return err
	}

	_, err = utils.SendMessageWithMarkup(h.botApi, req.ChatId, "📉 *Sell*\n\nChoose the token you want to sell:", sellMenuMarkup(req.Session.Id, balances))
	return err
}

// findHolding 解析回调中的下标和标签
func (h *TradeHandler) findHolding(username, indexText, tag string) (int, session.Holding, bool) {
	index, err := strconv.Atoi(indexText)
	if err != nil {
		return 0, session.Holding{}, false
	}
	holding, ok := h.svcCtx.Sessions.HoldingAt(username, index, tag)
	return index, holding, ok
}

func (h *TradeHandler) handleSellSymbol(ctx context.Context, req *router.Request) error {
	indexText, tag := req.Payload.Arg(0), req.Payload.Arg(1)
	_, holding, ok := h.findHolding(req.Session.Username, indexText, tag)
	if !ok {
		_, err := utils.SendMessage(h.botApi, req.ChatId, FormatTradeError(swap.ErrHoldingNotFound))
		return err
	}

	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(sellPresets)+1)
	choices := append(append([]string{}, sellPresets...), customPercent)
	for _, percent := range choices {
		label := percent + "%"
		if percent == customPercent {
			label = "✏️ Custom"
		}
		buttons = append(buttons, callback.Button(label, callback.KindSellNow, req.Session.Id, percent, indexText, tag))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		buttons[:len(sellPresets)],
		tgbotapi.NewInlineKeyboardRow(
			buttons[len(sellPresets)],
			callback.Button("◀️ Back", callback.KindSell, req.Session.Id),
		),
	)

	text := fmt.Sprintf("📉 *Sell %s*\n\nHow much of your balance do you want to sell?", utils.EscapeMarkdown(holding.Symbol))
	_, err := utils.EditMessage(h.botApi, req.ChatId, req.MessageId(), text, markup)
	return err
}

func (h *TradeHandler) handleSellNow(ctx context.Context, req *router.Request) error {
	choice, indexText, tag := req.Payload.Arg(0), req.Payload.Arg(1), req.Payload.Arg(2)
	index, holding, ok := h.findHolding(req.Session.Username, indexText, tag)
	if !ok {
		_, err := utils.SendMessage(h.botApi, req.ChatId, FormatTradeError(swap.ErrHoldingNotFound))
		return err
	}

	if choice != customPercent {
		percent, err := utils.ParsePercent(choice)
		if err != nil {
			logger.Warnf("[TradeHandler] 无效的卖出比例, username: %s, percent: %s", req.Session.Username, choice)
			return nil
		}
		h.startSell(ctx, req.ChatId, req.Session.Username, index, tag, percent)
		return nil
	}

	text := fmt.Sprintf("✏️ Reply with the percentage of your %s to sell (1-100).", utils.EscapeMarkdown(holding.Symbol))
	msg, err := utils.SendForceReply(h.botApi, req.ChatId, text)
	if err != nil {
		return err
	}

	h.svcCtx.Prompts.Set(req.ChatId, session.Prompt{
		Kind:      session.PromptCustomSell,
		SessionId: req.Session.Id,
		Username:  req.Session.Username,
		Args:      []string{indexText, tag},
		MessageId: msg.MessageID,
	})
	return nil
}

func (h *TradeHandler) handleCustomSell(ctx context.Context, prompt session.Prompt, msg *tgbotapi.Message) error {
	chatId := msg.Chat.ID
	utils.DeleteMessages(h.botApi, chatId, []int{prompt.MessageId})

	percent, err := utils.ParsePercent(msg.Text)
	if err != nil {
		_, err = utils.SendMessage(h.botApi, chatId, "⚠️ Please enter a percentage between 1 and 100.")
		return err
	}

	if len(prompt.Args) < 2 {
		return fmt.Errorf("custom sell prompt missing holding, args: %v", prompt.Args)
	}
	index, err := strconv.Atoi(prompt.Args[0])
	if err != nil {
		return err
	}
	h.startSell(ctx, chatId, prompt.Username, index, prompt.Args[1], percent)
	return nil
}

func (h *TradeHandler) startSell(ctx context.Context, chatId int64, username string, index int, tag string, percent decimal.Decimal) {
	h.spawn(func() {
		result, err := h.svcCtx.SwapService.Sell(ctx, swap.SellRequest{
			Username: username,
			Index:    index,
			Tag:      tag,
			Percent:  percent,
			Notifier: h.notifier(chatId),
		})
		if err != nil {
			h.reportError(chatId, swap.SideSell, username, err)
			return
		}
		logger.Infof("[TradeHandler] 卖出成功, request: %s, username: %s, hash: %s", result.RequestId, username, result.TxHash)
	})
}
