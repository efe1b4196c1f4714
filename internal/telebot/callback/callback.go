package callback

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Kind string

const (
	KindCreate         Kind = "create"
	KindImport         Kind = "import"
	KindInfo           Kind = "info"
	KindSettings       Kind = "settings"
	KindSell           Kind = "asell"
	KindSetGasBuffer   Kind = "set_gas_buffer"
	KindSetSlippage    Kind = "set_slippage"
	KindCustomGas      Kind = "custom_gas"
	KindCustomSlippage Kind = "custom_slippage"
	KindGasBuffer      Kind = "gas_buffer"
	KindSlippage       Kind = "slippage"
	KindSellSymbol     Kind = "sell_symbol"
	KindSellNow        Kind = "sell_now"
	KindShowPrivateKey Kind = "showPrivateKey"
	KindDeleteMessage  Kind = "deleteMessage"
)

// MaxDataLength Telegram 回调数据上限
const MaxDataLength = 64

const separator = ":"

var (
	ErrMalformed = errors.New("malformed callback data")
	ErrTooLong   = errors.New("callback data exceeds 64 bytes")
)

type Payload struct {
	Kind      Kind
	SessionId string
	Args      []string
	// Username 仅旧格式携带
	Username string
	Legacy   bool
}

func (p Payload) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Encode kind:sessionId[:arg...], 每个字段单独转义
func Encode(kind Kind, sessionId string, args ...string) (string, error) {
	if kind == "" || sessionId == "" {
		return "", ErrMalformed
	}

	fields := make([]string, 0, len(args)+2)
	fields = append(fields, url.QueryEscape(string(kind)), url.QueryEscape(sessionId))
	for _, arg := range args {
		fields = append(fields, url.QueryEscape(arg))
	}

	data := strings.Join(fields, separator)
	if len(data) > MaxDataLength {
		return "", fmt.Errorf("%w: %s", ErrTooLong, data)
	}
	return data, nil
}

func MustEncode(kind Kind, sessionId string, args ...string) string {
	data, err := Encode(kind, sessionId, args...)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data string) (Payload, error) {
	if strings.Contains(data, separator) {
		return decodeStructured(data)
	}
	return decodeLegacy(data)
}

func decodeStructured(data string) (Payload, error) {
	fields := strings.Split(data, separator)
	if len(fields) < 2 {
		return Payload{}, ErrMalformed
	}

	values := make([]string, 0, len(fields))
	for _, field := range fields {
		v, err := url.QueryUnescape(field)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		values = append(values, v)
	}

	if values[0] == "" || values[1] == "" {
		return Payload{}, ErrMalformed
	}
	return Payload{Kind: Kind(values[0]), SessionId: values[1], Args: values[2:]}, nil
}

// legacyKinds 按前缀长度排列, 长前缀优先匹配
var legacyKinds = []struct {
	kind  Kind
	arity int
}{
	{KindSetGasBuffer, 0},
	{KindCustomSlippage, 0},
	{KindShowPrivateKey, 0},
	{KindDeleteMessage, 0},
	{KindSetSlippage, 0},
	{KindSellSymbol, 1},
	{KindCustomGas, 0},
	{KindGasBuffer, 1},
	{KindSellNow, 2},
	{KindSettings, 0},
	{KindSlippage, 1},
	{KindCreate, 0},
	{KindImport, 0},
	{KindSell, 0},
	{KindInfo, 0},
}

// decodeLegacy 旧格式 action[_arg...][_username]_chatId_timestamp
func decodeLegacy(data string) (Payload, error) {
	for _, item := range legacyKinds {
		prefix := string(item.kind) + "_"
		if !strings.HasPrefix(data, prefix) {
			continue
		}

		tokens := strings.Split(strings.TrimPrefix(data, prefix), "_")
		if len(tokens) < item.arity+2 {
			return Payload{}, ErrMalformed
		}

		sessionTokens := tokens[len(tokens)-2:]
		if sessionTokens[0] == "" || sessionTokens[1] == "" {
			return Payload{}, ErrMalformed
		}

		rest := tokens[:len(tokens)-2]
		args := rest[:item.arity]
		username := strings.Trim(strings.Join(rest[item.arity:], "_"), "_")

		return Payload{
			Kind:      item.kind,
			SessionId: strings.Join(sessionTokens, "_"),
			Args:      append([]string{}, args...),
			Username:  username,
			Legacy:    true,
		}, nil
	}
	return Payload{}, ErrMalformed
}

// Button 固定参数的按钮, 数据超长时panic
func Button(text string, kind Kind, sessionId string, args ...string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, MustEncode(kind, sessionId, args...))
}
