package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// CallbackDedup 在时间窗口内丢弃重复的回调
type CallbackDedup struct {
	seen *cache.Cache
}

func NewCallbackDedup(window time.Duration) *CallbackDedup {
	return &CallbackDedup{seen: cache.New(window, window)}
}

// Seen 首次出现返回false并记录
func (d *CallbackDedup) Seen(callbackId string) bool {
	return d.seen.Add(callbackId, struct{}{}, cache.DefaultExpiration) != nil
}
