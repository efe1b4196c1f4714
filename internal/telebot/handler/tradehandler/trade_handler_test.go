package tradehandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/config"
	"github.com/fachebot/evm-genie-bot/internal/datapi/honeypot"
	"github.com/fachebot/evm-genie-bot/internal/kvstore"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/session"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/swap"
	"github.com/fachebot/evm-genie-bot/internal/telebot/bottest"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/telebot/handler/wallethandler"
	"github.com/fachebot/evm-genie-bot/internal/telebot/router"

	"github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenAddress = "0x6982508145454Ce325dDbE47a25d4ec3d2311933"

func newTestHandler(t *testing.T) (*TradeHandler, *svc.ServiceContext, *bottest.Bot) {
	store, err := kvstore.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &config.Config{}
	c.Chain.Id = 1
	c.Chain.NativeCurrency.Symbol = "ETH"
	c.Chain.NativeCurrency.Decimals = 18
	c.Session.PromptTTL = time.Minute

	svcCtx := svc.NewServiceContext(c, store, nil, nil)
	bot := bottest.NewBot()
	h := NewTradeHandler(svcCtx, bot)
	h.spawn = func(f func()) { f() }
	return h, svcCtx, bot
}

func groupMessage(text string, userId int64, username string) *tgbotapi.Message {
	entityLength := len(text)
	for i, r := range text {
		if r == ' ' {
			entityLength = i
			break
		}
	}
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userId, UserName: username},
		Chat:      &tgbotapi.Chat{ID: -100, Type: "supergroup"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: entityLength}},
	}
}

func TestFormatTradeError(t *testing.T) {
	missing := &swap.MissingConfigError{Items: []swap.MissingItem{swap.MissingChannelBinding, swap.MissingGasBuffer, swap.MissingSlippage, swap.MissingWallet}}
	text := FormatTradeError(fmt.Errorf("buy: %w", missing))
	for _, item := range missing.Items {
		assert.Contains(t, text, string(item))
	}

	assert.Contains(t, FormatTradeError(fmt.Errorf("%w, swap: reverted", swap.ErrSlippageExceeded)), "adjust your slippage")
	assert.Contains(t, FormatTradeError(swap.ErrChainRejected), "rejected by the chain")
	assert.Contains(t, FormatTradeError(swap.ErrInsufficientFunds), "funds are too low")
	assert.Contains(t, FormatTradeError(errors.New("boom")), "please try again")
}

func TestRenderEvent(t *testing.T) {
	assert.Contains(t, RenderEvent(swap.Event{Kind: swap.EventSwapSubmitted, TxLink: "https://etherscan.io/tx/0x1"}, "ETH"), "https://etherscan.io/tx/0x1")

	text := RenderEvent(swap.Event{
		Kind: swap.EventSucceeded,
		Side: swap.SideBuy,
		Summary: &swap.TradeSummary{
			TokenSymbol:  "PEPE",
			TokenAmount:  decimal.RequireFromString("1234.56789"),
			NativeAmount: decimal.RequireFromString("0.1"),
		},
	}, "ETH")
	assert.Contains(t, text, "Received 1234.5678 PEPE for 0.1 ETH")
}

func TestFormatWishGranted(t *testing.T) {
	text := FormatWishGranted("genie_fan", &swap.TradeSummary{
		TokenName:    "Pepe",
		TokenSymbol:  "PEPE",
		NativeAmount: decimal.RequireFromString("0.25"),
		MarketCapUSD: decimal.NewFromInt(1500000),
		TxLink:       "https://etherscan.io/tx/0xabc",
	}, "ETH")

	assert.Contains(t, text, `@genie\_fan Wish Granted!`)
	assert.Contains(t, text, "🧞‍♂️🧞‍♂️🧞‍♂️")
	assert.NotContains(t, text, "🧞‍♂️🧞‍♂️🧞‍♂️🧞‍♂️🧞‍♂️")
	assert.Contains(t, text, "$1,500,000")
	assert.Contains(t, text, "https://etherscan.io/tx/0xabc")
}

func TestSetGenieRequiresAdmin(t *testing.T) {
	h, svcCtx, bot := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleSetGenie(ctx, groupMessage("/setGenie "+tokenAddress, 7, "alice")))
	assert.Contains(t, bot.LastText(), "Only channel admins")
	_, err := svcCtx.ChannelModel.FindByChatId(ctx, -100)
	assert.True(t, model.IsNotFound(err))

	require.NoError(t, h.HandleSetGenie(ctx, groupMessage("/setGenie 0x1234", 7, "alice")))
	assert.Contains(t, bot.LastText(), "Usage")

	bot.SetMemberStatus(7, "administrator")
	require.NoError(t, h.HandleSetGenie(ctx, groupMessage("/setGenie "+tokenAddress, 7, "alice")))
	address, err := svcCtx.ChannelModel.FindByChatId(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(tokenAddress).Hex(), address)
}

func TestGenieReportsAllMissingSettings(t *testing.T) {
	h, _, bot := newTestHandler(t)

	require.NoError(t, h.HandleGenie(context.Background(), groupMessage("/genie 1.0", 7, "alice")))

	text := bot.LastText()
	assert.Contains(t, text, string(swap.MissingChannelBinding))
	assert.Contains(t, text, string(swap.MissingGasBuffer))
	assert.Contains(t, text, string(swap.MissingSlippage))
	assert.Contains(t, text, string(swap.MissingWallet))
}

func TestGenieRejectsBadInput(t *testing.T) {
	h, _, bot := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleGenie(ctx, groupMessage("/genie abc", 7, "alice")))
	assert.Contains(t, bot.LastText(), "Usage: /genie")

	require.NoError(t, h.HandleGenie(ctx, groupMessage("/genie 1", 7, "")))
	assert.Contains(t, bot.LastText(), "Telegram username")
}

func TestSellNowCustomSetsPrompt(t *testing.T) {
	h, svcCtx, _ := newTestHandler(t)

	s, err := svcCtx.Sessions.CreateSession(42, "alice")
	require.NoError(t, err)
	holding := session.Holding{Symbol: "PEPE", TokenAddress: tokenAddress}
	svcCtx.Sessions.RecordHoldings("alice", []session.Holding{holding})

	payload, err := callback.Decode(callback.MustEncode(callback.KindSellNow, s.Id, "custom", "0", holding.Tag()))
	require.NoError(t, err)

	req := &router.Request{ChatId: 42, Session: s, Payload: payload}
	require.NoError(t, h.handleSellNow(context.Background(), req))

	prompt, ok := svcCtx.Prompts.Take(42)
	require.True(t, ok)
	assert.Equal(t, session.PromptCustomSell, prompt.Kind)
	assert.Equal(t, []string{"0", holding.Tag()}, prompt.Args)
}

func TestSellSymbolUnknownHolding(t *testing.T) {
	h, svcCtx, bot := newTestHandler(t)

	s, err := svcCtx.Sessions.CreateSession(42, "alice")
	require.NoError(t, err)
	svcCtx.Sessions.RecordHoldings("alice", []session.Holding{{Symbol: "PEPE", TokenAddress: tokenAddress}})

	for _, args := range [][]string{{"1", "69825081"}, {"0", "deadbeef"}, {"x", "69825081"}} {
		payload, err := callback.Decode(callback.MustEncode(callback.KindSellSymbol, s.Id, args...))
		require.NoError(t, err)

		require.NoError(t, h.handleSellSymbol(context.Background(), &router.Request{ChatId: 42, Session: s, Payload: payload}))
		assert.Contains(t, bot.LastText(), "not found in your holdings", args)
	}
}

func keyboardData(markup tgbotapi.InlineKeyboardMarkup) []string {
	data := make([]string, 0)
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			if button.CallbackData != nil {
				data = append(data, *button.CallbackData)
			}
		}
	}
	return data
}

func lastMarkup(t *testing.T, bot *bottest.Bot) tgbotapi.InlineKeyboardMarkup {
	sent := bot.Sent()
	require.NotEmpty(t, sent)
	switch c := sent[len(sent)-1].(type) {
	case tgbotapi.MessageConfig:
		return c.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	case tgbotapi.EditMessageTextConfig:
		return *c.ReplyMarkup
	}
	t.Fatalf("unexpected message type %T", sent[len(sent)-1])
	return tgbotapi.InlineKeyboardMarkup{}
}

func TestSellLongSymbol(t *testing.T) {
	h, svcCtx, bot := newTestHandler(t)

	s, err := svcCtx.Sessions.CreateSession(42, "alice")
	require.NoError(t, err)

	symbol := strings.Repeat("A", 30)
	balances := []wallethandler.TokenBalance{{Symbol: symbol, Address: strings.ToLower(tokenAddress), Amount: decimal.NewFromInt(5)}}
	svcCtx.Sessions.RecordHoldings("alice", []session.Holding{{Symbol: symbol, TokenAddress: balances[0].Address}})

	menu := keyboardData(sellMenuMarkup(s.Id, balances))
	require.Len(t, menu, 2)

	payload, err := callback.Decode(menu[0])
	require.NoError(t, err)
	assert.Equal(t, callback.KindSellSymbol, payload.Kind)

	require.NoError(t, h.handleSellSymbol(context.Background(), &router.Request{ChatId: 42, Session: s, Payload: payload}))
	assert.Contains(t, bot.LastText(), symbol)

	for _, data := range keyboardData(lastMarkup(t, bot)) {
		assert.LessOrEqual(t, len(data), callback.MaxDataLength, data)
	}
}

func TestSellMenuSameSymbol(t *testing.T) {
	h, svcCtx, bot := newTestHandler(t)

	s, err := svcCtx.Sessions.CreateSession(42, "alice")
	require.NoError(t, err)

	balances := []wallethandler.TokenBalance{
		{Symbol: "PEPE", Address: "0xaaaa000000000000000000000000000000000001", Amount: decimal.NewFromInt(1)},
		{Symbol: "PEPE", Address: "0xbbbb000000000000000000000000000000000002", Amount: decimal.NewFromInt(2)},
	}
	svcCtx.Sessions.RecordHoldings("alice", lo.Map(balances, func(b wallethandler.TokenBalance, _ int) session.Holding {
		return session.Holding{Symbol: b.Symbol, TokenAddress: b.Address}
	}))

	menu := keyboardData(sellMenuMarkup(s.Id, balances))
	require.Len(t, menu, 3)
	assert.NotEqual(t, menu[0], menu[1])

	// 第二个按钮必须解析到第二个代币
	payload, err := callback.Decode(menu[1])
	require.NoError(t, err)
	holding, ok := svcCtx.Sessions.HoldingAt("alice", 1, payload.Arg(1))
	require.True(t, ok)
	assert.Equal(t, balances[1].Address, holding.TokenAddress)

	require.NoError(t, h.handleSellSymbol(context.Background(), &router.Request{ChatId: 42, Session: s, Payload: payload}))
	for _, data := range keyboardData(lastMarkup(t, bot)) {
		p, err := callback.Decode(data)
		require.NoError(t, err)
		if p.Kind == callback.KindSellNow {
			assert.Equal(t, []string{"1", "bbbb0000"}, p.Args[1:])
		}
	}
}

func TestTokenCheck(t *testing.T) {
	h, svcCtx, bot := newTestHandler(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/IsHoneypot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token":{"name":"Pepe","symbol":"PEPE","address":"`+tokenAddress+`","totalHolders":42},
			"summary":{"risk":"low","riskLevel":1},"simulationSuccess":true,
			"honeypotResult":{"isHoneypot":false},
			"simulationResult":{"buyTax":0,"sellTax":1.5,"transferTax":0}}`)
	}))
	defer srv.Close()
	svcCtx.Honeypot = honeypot.NewClient(srv.URL, 1, nil)

	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}, Text: tokenAddress}
	handled, err := h.HandleTokenCheck(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, handled)
	assert.Contains(t, bot.LastText(), "simulation passed")
	assert.Contains(t, bot.LastText(), "sell 1.5%")

	handled, err = h.HandleTokenCheck(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42, Type: "private"}, Text: "hello"})
	require.NoError(t, err)
	assert.False(t, handled)
}
