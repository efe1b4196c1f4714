package settingshandler

import (
	"context"
	"fmt"

	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/telebot/callback"
	"github.com/fachebot/evm-genie-bot/internal/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// 未设置时仅用于展示的推荐值
var (
	DefaultGasBuffer = decimal.NewFromInt(10)
	DefaultSlippage  = decimal.NewFromInt(3)
)

var (
	gasBufferPresets = []int64{5, 10, 20, 40}
	slippagePresets  = []int64{3, 5, 10, 30}
)

type userSettings struct {
	GasBuffer    decimal.Decimal
	GasBufferSet bool
	Slippage     decimal.Decimal
	SlippageSet  bool
}

func getUserSettings(ctx context.Context, svcCtx *svc.ServiceContext, username string) (*userSettings, error) {
	s := &userSettings{GasBuffer: DefaultGasBuffer, Slippage: DefaultSlippage}

	gasBuffer, err := svcCtx.SettingsModel.FindGasBuffer(ctx, username)
	if err == nil {
		s.GasBuffer, s.GasBufferSet = gasBuffer, true
	} else if !model.IsNotFound(err) {
		return nil, err
	}

	slippage, err := svcCtx.SettingsModel.FindSlippage(ctx, username)
	if err == nil {
		s.Slippage, s.SlippageSet = slippage, true
	} else if !model.IsNotFound(err) {
		return nil, err
	}

	return s, nil
}

func formatValue(value decimal.Decimal, set bool) string {
	if set {
		return value.String() + "%"
	}
	return value.String() + "% (default, not saved)"
}

func getSettingsMenu(chainId int64, sessionId string, s *userSettings) (string, tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("⚙️ *Settings* | %s\n\n⛽ *Gas Buffer:* %s\nExtra margin added to the estimated gas price and limit.\n\n📉 *Slippage:* %s\nMaximum price movement tolerated for a swap.",
		utils.GetNetworkName(chainId), formatValue(s.GasBuffer, s.GasBufferSet), formatValue(s.Slippage, s.SlippageSet))

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			callback.Button(fmt.Sprintf("⛽ Gas Buffer: %s%%", s.GasBuffer), callback.KindSetGasBuffer, sessionId),
			callback.Button(fmt.Sprintf("📉 Slippage: %s%%", s.Slippage), callback.KindSetSlippage, sessionId),
		),
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("❌ Close", callback.KindDeleteMessage, sessionId),
		),
	)
	return text, markup
}

// getPresetMenu 预设值按钮, 当前值前加勾
func getPresetMenu(kind model.SettingKind, sessionId string, current decimal.Decimal) (string, tgbotapi.InlineKeyboardMarkup) {
	title := "⛽ *Gas Buffer*\n\nChoose how much to add on top of the estimated gas, or enter a custom value (1-100)."
	presets, presetKind, customKind := gasBufferPresets, callback.KindGasBuffer, callback.KindCustomGas
	if kind == model.SettingSlippage {
		title = "📉 *Slippage*\n\nChoose the maximum price movement you accept, or enter a custom value (1-100)."
		presets, presetKind, customKind = slippagePresets, callback.KindSlippage, callback.KindCustomSlippage
	}

	buttons := lo.Map(presets, func(n int64, _ int) tgbotapi.InlineKeyboardButton {
		label := fmt.Sprintf("%d%%", n)
		if current.Equal(decimal.NewFromInt(n)) {
			label = "✅ " + label
		}
		return callback.Button(label, presetKind, sessionId, fmt.Sprintf("%d", n))
	})

	markup := tgbotapi.NewInlineKeyboardMarkup(
		buttons,
		tgbotapi.NewInlineKeyboardRow(
			callback.Button("✏️ Custom", customKind, sessionId),
			callback.Button("◀️ Back", callback.KindSettings, sessionId),
		),
	)
	return title, markup
}

func settingLabel(kind model.SettingKind) string {
	if kind == model.SettingSlippage {
		return "Slippage"
	}
	return "Gas buffer"
}
