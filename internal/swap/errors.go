package swap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidInput         = errors.New("invalid input")
	ErrChainRejected        = errors.New("transaction rejected by chain")
	ErrSlippageExceeded     = fmt.Errorf("%w: insufficient output amount", ErrChainRejected)
	ErrTransport            = errors.New("transport failure")
	ErrAllowanceShort       = errors.New("allowance still short after approval")
	ErrTradeInProgress      = errors.New("trade already in progress")
	ErrHoldingNotFound      = errors.New("holding not found")
	ErrInvalidGasLimit      = errors.New("invalid gas limit")
)

type MissingItem string

const (
	MissingChannelBinding MissingItem = "channel contract address"
	MissingGasBuffer      MissingItem = "gas buffer"
	MissingSlippage       MissingItem = "slippage"
	MissingWallet         MissingItem = "wallet"
)

// MissingConfigError 汇总所有缺失的配置项
type MissingConfigError struct {
	Items []MissingItem
}

func (e *MissingConfigError) Error() string {
	items := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		items = append(items, string(item))
	}
	return fmt.Sprintf("%v: %s", ErrConfigurationMissing, strings.Join(items, ", "))
}

func (e *MissingConfigError) Unwrap() error {
	return ErrConfigurationMissing
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w, %s: %w", ErrTransport, op, err)
}

// classifyChainError 区分节点拒绝和网络故障
func classifyChainError(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "INSUFFICIENT_OUTPUT_AMOUNT"):
		return fmt.Errorf("%w, %s: %v", ErrSlippageExceeded, op, err)
	case strings.Contains(strings.ToLower(msg), "insufficient funds"):
		return fmt.Errorf("%w, %s: %v", ErrInsufficientFunds, op, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w, %s: %v", ErrChainRejected, op, err)
	}
	return transportError(op, err)
}
