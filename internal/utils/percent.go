package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidNumber   = errors.New("invalid number")
	ErrPercentOutRange = errors.New("percent must be between 1 and 100")
)

var (
	minPercent = decimal.NewFromInt(1)
	maxPercent = decimal.NewFromInt(100)
)

// ParsePercent 解析1到100之间的百分比, 允许带%后缀
func ParsePercent(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	if d.LessThan(minPercent) || d.GreaterThan(maxPercent) {
		return decimal.Zero, ErrPercentOutRange
	}
	return d, nil
}

// ParseAmount 解析正数金额
func ParseAmount(text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, ErrInvalidNumber
	}
	return d, nil
}
