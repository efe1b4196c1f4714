package session

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fachebot/evm-genie-bot/internal/utils"

	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
)

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	Id        string
	ChatId    int64
	Username  string
	CreatedAt time.Time
}

type Holding struct {
	Symbol       string
	TokenAddress string
}

const holdingTagLength = 8

// Tag 合约地址前8位十六进制, 用于回调中校验快照未被替换
func (h Holding) Tag() string {
	address := strings.ToLower(strings.TrimPrefix(h.TokenAddress, "0x"))
	return lo.Substring(address, 0, holdingTagLength)
}

// Registry 菜单会话和持仓快照, 仅保存在内存中
type Registry struct {
	encoder  *utils.HashEncoder
	sequence atomic.Int64
	sessions *cache.Cache
	holdings *cache.Cache
}

func NewRegistry(encoder *utils.HashEncoder, ttl time.Duration) *Registry {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}

	return &Registry{
		encoder:  encoder,
		sessions: cache.New(expiration, cleanup),
		holdings: cache.New(cache.NoExpiration, 0),
	}
}

// CreateSession 会话ID由chatId和创建时间编码, 不含分隔符
func (r *Registry) CreateSession(chatId int64, username string) (Session, error) {
	now := time.Now()
	abs, sign := chatId, int64(0)
	if chatId < 0 {
		abs, sign = -chatId, 1
	}

	id, err := r.encoder.Encode(abs, sign, now.UnixMilli(), r.sequence.Add(1))
	if err != nil {
		return Session{}, err
	}

	s := Session{Id: id, ChatId: chatId, Username: username, CreatedAt: now}
	r.sessions.SetDefault(id, s)
	return s, nil
}

// ResolveSession 先解码会话ID, 编码的chatId必须与会话记录一致
func (r *Registry) ResolveSession(sessionId string) (Session, error) {
	numbers, err := r.encoder.Decode(sessionId)
	if err != nil || len(numbers) != 4 {
		return Session{}, ErrSessionNotFound
	}

	val, ok := r.sessions.Get(sessionId)
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	s := val.(Session)
	chatId := numbers[0]
	if numbers[1] == 1 {
		chatId = -chatId
	}
	if chatId != s.ChatId {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// RecordHoldings 每次扫描后整体替换
func (r *Registry) RecordHoldings(username string, holdings []Holding) {
	r.holdings.SetDefault(username, append([]Holding(nil), holdings...))
}

func (r *Registry) GetHoldings(username string) []Holding {
	val, ok := r.holdings.Get(username)
	if !ok {
		return nil
	}
	return val.([]Holding)
}

// HoldingAt 按快照下标查找, tag必须与该持仓的合约地址一致
func (r *Registry) HoldingAt(username string, index int, tag string) (Holding, bool) {
	holdings := r.GetHoldings(username)
	if index < 0 || index >= len(holdings) {
		return Holding{}, false
	}

	h := holdings[index]
	if h.Tag() != tag {
		return Holding{}, false
	}
	return h, true
}
