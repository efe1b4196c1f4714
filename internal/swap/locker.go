package swap

import "sync"

// TradeLocker 同一用户同时只允许一笔交易
type TradeLocker struct {
	mutex  sync.Mutex
	active map[string]struct{}
}

func NewTradeLocker() *TradeLocker {
	return &TradeLocker{active: make(map[string]struct{})}
}

func (l *TradeLocker) TryLock(username string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.active[username]; ok {
		return false
	}
	l.active[username] = struct{}{}
	return true
}

func (l *TradeLocker) Unlock(username string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.active, username)
}
