package eth

import (
	"context"
	"sync"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common"
)

type NonceManager struct {
	mutex        sync.Mutex
	accountLocks map[common.Address]*sync.Mutex
	nonceModel   *model.NonceModel
	client       evm.Client
}

type NonceConsumeFunc func(ctx context.Context, nonce uint64) (hash string, err error)

func NewNonceManager(nonceModel *model.NonceModel, client evm.Client) *NonceManager {
	return &NonceManager{
		nonceModel:   nonceModel,
		client:       client,
		accountLocks: make(map[common.Address]*sync.Mutex),
	}
}

func (m *NonceManager) lock(account common.Address) *sync.Mutex {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	accountMutex, ok := m.accountLocks[account]
	if !ok {
		accountMutex = new(sync.Mutex)
		m.accountLocks[account] = accountMutex
	}
	return accountMutex
}

// Request 同一账户串行分配nonce, 发送成功后记录已使用的nonce
func (m *NonceManager) Request(ctx context.Context, account common.Address, consume NonceConsumeFunc) error {
	accountMutex := m.lock(account)
	accountMutex.Lock()
	defer accountMutex.Unlock()

	nextNonce, err := m.client.PendingNonceAt(ctx, account)
	if err != nil {
		return err
	}

	storedNonce, err := m.nonceModel.FindOne(ctx, account.Hex())
	if err != nil && !model.IsNotFound(err) {
		return err
	}
	if err == nil && storedNonce >= nextNonce {
		nextNonce = storedNonce + 1
	}

	hash, err := consume(ctx, nextNonce)
	if err != nil {
		return err
	}

	if err = m.nonceModel.Save(ctx, account.Hex(), nextNonce); err != nil {
		logger.Errorf("[NonceManager] 更新账户nonce失败, account: %s, nonce: %d, hash: %s, %v", account, nextNonce, hash, err)
	}
	return nil
}
