package swap

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/utils"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Step 一次需要估算, 签名, 发送并等待确认的调用
type Step struct {
	Name      string
	Call      Call
	Submitted EventKind
}

type stepResult struct {
	Hash    common.Hash
	Link    string
	Receipt *types.Receipt
}

func (s *SwapService) sendTransaction(ctx context.Context, prv *ecdsa.PrivateKey, call Call, cost Cost) (common.Hash, error) {
	var hash common.Hash
	chainId := big.NewInt(s.opts.ChainId)

	err := s.nonceManager.Request(ctx, call.From, func(ctx context.Context, nonce uint64) (string, error) {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: cost.GasPrice,
			Gas:      cost.GasLimit,
			To:       &call.To,
			Value:    call.Value,
			Data:     call.Data,
		})

		signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainId), prv)
		if err != nil {
			return "", err
		}

		if err = s.client.SendTransaction(ctx, signedTx); err != nil {
			return "", err
		}

		hash = signedTx.Hash()
		return hash.Hex(), nil
	})
	if err != nil {
		return common.Hash{}, classifyChainError("send transaction", err)
	}
	return hash, nil
}

func (s *SwapService) confirm(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := evm.WaitMined(ctx, s.client, hash, s.opts.PollInterval)
	if err != nil {
		return nil, transportError("wait mined", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w, hash: %s", ErrChainRejected, hash.Hex())
	}
	return receipt, nil
}

// revertReason 在失败区块重放调用以获取回滚原因
func (s *SwapService) revertReason(ctx context.Context, call Call, receipt *types.Receipt, cause error) error {
	_, err := s.client.CallContract(ctx, ethereum.CallMsg{
		From:  call.From,
		To:    &call.To,
		Value: call.Value,
		Data:  call.Data,
	}, receipt.BlockNumber)
	if err == nil {
		return cause
	}

	classified := classifyChainError("replay", err)
	if errors.Is(classified, ErrSlippageExceeded) {
		return fmt.Errorf("%w, hash: %s", classified, receipt.TxHash.Hex())
	}
	return cause
}

// executeStep 估算成本并检查余额后提交, 阻塞到交易上链
func (s *SwapService) executeStep(ctx context.Context, t *trade, step Step) (stepResult, error) {
	cost, err := s.estimator.EstimateCost(ctx, step.Call, t.gasBuffer)
	if err != nil {
		logger.Errorf("[SwapService] 估算gas失败, request: %s, step: %s, %v", t.requestId, step.Name, err)
		return stepResult{}, err
	}

	balance, err := s.client.BalanceAt(ctx, t.account, nil)
	if err != nil {
		return stepResult{}, transportError("balance", err)
	}
	if balance.Cmp(cost.WorstCase) < 0 {
		return stepResult{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost.WorstCase, balance)
	}

	hash, err := s.sendTransaction(ctx, t.prv, step.Call, cost)
	if err != nil {
		logger.Errorf("[SwapService] 发送交易失败, request: %s, step: %s, %v", t.requestId, step.Name, err)
		return stepResult{}, err
	}

	link := utils.GetBlockExplorerTxLink(s.opts.ChainId, hash.Hex())
	logger.Infof("[SwapService] 交易已提交, request: %s, step: %s, hash: %s", t.requestId, step.Name, hash.Hex())
	t.notify(ctx, Event{Kind: step.Submitted, TxHash: hash.Hex(), TxLink: link})

	receipt, err := s.confirm(ctx, hash)
	if err != nil && receipt != nil {
		err = s.revertReason(ctx, step.Call, receipt, err)
	}
	if err != nil {
		logger.Errorf("[SwapService] 交易失败, request: %s, step: %s, hash: %s, %v", t.requestId, step.Name, hash.Hex(), err)
		return stepResult{Hash: hash, Link: link, Receipt: receipt}, err
	}
	return stepResult{Hash: hash, Link: link, Receipt: receipt}, nil
}
