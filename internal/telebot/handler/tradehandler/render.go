package tradehandler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/datapi/honeypot"
	"github.com/fachebot/evm-genie-bot/internal/swap"
	"github.com/fachebot/evm-genie-bot/internal/utils"

	"github.com/samber/lo"
)

const wishEmoji = "🧞‍♂️"

// FormatTradeError 将交易错误转换为用户提示
func FormatTradeError(err error) string {
	var missing *swap.MissingConfigError
	switch {
	case errors.As(err, &missing):
		items := lo.Map(missing.Items, func(item swap.MissingItem, _ int) string {
			return "• " + string(item)
		})
		return "⚠️ Please set up the following before trading:\n" + strings.Join(items, "\n")
	case errors.Is(err, swap.ErrTradeInProgress):
		return "⏳ You already have a trade in progress. Please wait for it to finish."
	case errors.Is(err, swap.ErrInsufficientFunds):
		return "❌ Your funds are too low to cover this trade and its gas cost."
	case errors.Is(err, swap.ErrSlippageExceeded):
		return "❌ Transaction failed. The price moved more than your slippage allows, please adjust your slippage and try again."
	case errors.Is(err, swap.ErrAllowanceShort):
		return "❌ Token approval did not cover the amount to sell. Please try again."
	case errors.Is(err, swap.ErrChainRejected):
		return "❌ Your transaction was rejected by the chain. Please check your settings and try again."
	case errors.Is(err, swap.ErrQuoteUnavailable):
		return "❌ Unable to get a price quote for this token right now."
	case errors.Is(err, swap.ErrHoldingNotFound):
		return "❌ Token not found in your holdings. Please open the Sell menu again."
	case errors.Is(err, swap.ErrInvalidGasLimit):
		return "❌ Gas estimation returned an invalid limit, the trade was not submitted."
	case errors.Is(err, swap.ErrInvalidInput):
		return "❌ Invalid trade request."
	}
	return "❌ Your transaction experienced an error, please try again. Check your settings!"
}

// RenderEvent 交易进度消息, 不需要提示的事件返回空字符串
func RenderEvent(e swap.Event, nativeSymbol string) string {
	switch e.Kind {
	case swap.EventInitiated:
		return "🧞‍♂️ Your transaction was initiated!"
	case swap.EventApprovalSubmitted:
		return fmt.Sprintf("📝 Approval submitted: [View on Explorer](%s)", e.TxLink)
	case swap.EventApprovalConfirmed:
		return "✅ Approval confirmed, submitting the swap..."
	case swap.EventSwapSubmitted:
		return fmt.Sprintf("🚀 Your transaction link: [View on Explorer](%s)", e.TxLink)
	case swap.EventSucceeded:
		text := "✅ Your transaction was successful!"
		s := e.Summary
		if s == nil {
			return text
		}

		symbol := utils.EscapeMarkdown(s.TokenSymbol)
		if e.Side == swap.SideBuy && s.TokenAmount.IsPositive() {
			text += fmt.Sprintf("\n\n🪙 Received %s %s for %s %s", s.TokenAmount.Truncate(4), symbol, s.NativeAmount, nativeSymbol)
		}
		if e.Side == swap.SideSell && s.TokenAmount.IsPositive() {
			received := "for"
			if s.NativeMin {
				received = "for at least"
			}
			text += fmt.Sprintf("\n\n🪙 Sold %s %s %s %s %s", s.TokenAmount.Truncate(4), symbol, received, s.NativeAmount.Truncate(6), nativeSymbol)
		}
		return text
	}
	return ""
}

// FormatWishGranted 买入成功后发到群组的消息
func FormatWishGranted(username string, s *swap.TradeSummary, nativeSymbol string) string {
	master := "@" + utils.EscapeMarkdown(username)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s Wish Granted!\n", master))
	if s.TokenName != "" || s.TokenSymbol != "" {
		sb.WriteString(fmt.Sprintf("%s %s | %s %s\n", wishEmoji, utils.EscapeMarkdown(s.TokenName), utils.EscapeMarkdown(s.TokenSymbol), wishEmoji))
	}
	sb.WriteString(fmt.Sprintf("\n%s\n\n", utils.EmojiBar(wishEmoji, s.NativeAmount)))
	sb.WriteString(fmt.Sprintf("🪄 *Master:* %s\n", master))
	if s.MarketCapUSD.IsPositive() {
		sb.WriteString(fmt.Sprintf("📊 *Market Cap:* %s\n", utils.FormatUSD(s.MarketCapUSD)))
	}
	if s.PriceUSD.IsPositive() {
		sb.WriteString(fmt.Sprintf("💲 *Price:* %s\n", utils.FormatUSD(s.PriceUSD)))
	}
	sb.WriteString(fmt.Sprintf("💸 *%s:* %s %s\n", nativeSymbol, s.NativeAmount, nativeSymbol))
	sb.WriteString(fmt.Sprintf("🔍 [View on Explorer](%s)", s.TxLink))
	return sb.String()
}

// FormatHoneypotReport 代币安全检查结果
func FormatHoneypotReport(report *honeypot.Report, links string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔎 *%s (%s)*\n`%s`\n\n",
		utils.EscapeMarkdown(report.Token.Name), utils.EscapeMarkdown(report.Token.Symbol), report.Token.Address))

	if report.HoneypotResult != nil && report.HoneypotResult.IsHoneypot {
		sb.WriteString("🚨 *HONEYPOT DETECTED*\n")
		if report.HoneypotResult.HoneypotReason != "" {
			sb.WriteString(utils.EscapeMarkdown(report.HoneypotResult.HoneypotReason) + "\n")
		}
	} else if report.SimulationSuccess {
		sb.WriteString("✅ Buy/sell simulation passed\n")
	} else {
		sb.WriteString("⚠️ Simulation failed, trade with caution\n")
	}

	if report.Summary.Risk != "" {
		sb.WriteString(fmt.Sprintf("🛡 *Risk:* %s (level %d)\n", utils.EscapeMarkdown(report.Summary.Risk), report.Summary.RiskLevel))
	}
	if r := report.SimulationResult; r != nil {
		sb.WriteString(fmt.Sprintf("💱 *Tax:* buy %s%% | sell %s%% | transfer %s%%\n",
			r.BuyTax.Round(2), r.SellTax.Round(2), r.TransferTax.Round(2)))
	}
	if report.Token.TotalHolders > 0 {
		sb.WriteString(fmt.Sprintf("👥 *Holders:* %d\n", report.Token.TotalHolders))
	}
	if p := report.Pair; p != nil && p.Liquidity.IsPositive() {
		sb.WriteString(fmt.Sprintf("💧 *Liquidity:* %s\n", utils.FormatUSD(p.Liquidity)))
	}

	sb.WriteString("\n" + links)
	return sb.String()
}
