package utils

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

func ShortenAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

func FormatUSD(value decimal.Decimal) string {
	f, _ := value.Float64()
	if value.Abs().LessThan(decimal.NewFromInt(1)) {
		return "$" + value.Truncate(8).String()
	}
	return "$" + humanize.CommafWithDigits(f, 2)
}

// EmojiBar 每0.1个原生币一个图标, 数量在1到10之间
func EmojiBar(emoji string, nativeAmount decimal.Decimal) string {
	count := nativeAmount.Div(decimal.RequireFromString("0.1")).Ceil().IntPart()
	if count < 1 {
		count = 1
	}
	if count > 10 {
		count = 10
	}
	return strings.Repeat(emoji, int(count))
}
