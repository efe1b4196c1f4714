package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type PromptKind string

const (
	PromptConfirmCreate  PromptKind = "confirm_create"
	PromptConfirmImport  PromptKind = "confirm_import"
	PromptPrivateKey     PromptKind = "private_key"
	PromptCustomGas      PromptKind = "custom_gas"
	PromptCustomSlippage PromptKind = "custom_slippage"
	PromptCustomSell     PromptKind = "custom_sell"
)

type Prompt struct {
	Kind      PromptKind
	SessionId string
	Username  string
	Args      []string
	MessageId int
}

// PromptStore 每个聊天最多一个待回复提示, 到期自动失效
type PromptStore struct {
	mutex   sync.Mutex
	prompts *cache.Cache
}

func NewPromptStore(ttl time.Duration) *PromptStore {
	return &PromptStore{prompts: cache.New(ttl, ttl)}
}

func promptKey(chatId int64) string {
	return strconv.FormatInt(chatId, 10)
}

// Set 覆盖该聊天之前的提示
func (s *PromptStore) Set(chatId int64, p Prompt) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.prompts.SetDefault(promptKey(chatId), p)
}

// Take 取出并清除提示
func (s *PromptStore) Take(chatId int64) (Prompt, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := promptKey(chatId)
	val, ok := s.prompts.Get(key)
	if !ok {
		return Prompt{}, false
	}
	s.prompts.Delete(key)
	return val.(Prompt), true
}
