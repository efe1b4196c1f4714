package wallethandler

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/fachebot/evm-genie-bot/internal/logger"
	"github.com/fachebot/evm-genie-bot/internal/model"
	"github.com/fachebot/evm-genie-bot/internal/svc"
	"github.com/fachebot/evm-genie-bot/internal/utils"
	"github.com/fachebot/evm-genie-bot/internal/utils/evm"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreateWallet 生成新钱包并覆盖已有记录
func CreateWallet(ctx context.Context, svcCtx *svc.ServiceContext, username string) (*model.Wallet, error) {
	privateKey, address, err := evm.GenerateKey()
	if err != nil {
		return nil, err
	}

	w := model.Wallet{Address: address, PrivateKey: privateKey}
	if err = svcCtx.WalletModel.Save(ctx, username, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ImportWallet 地址始终由私钥推导
func ImportWallet(ctx context.Context, svcCtx *svc.ServiceContext, username, keyText string) (*model.Wallet, error) {
	prv, err := evm.ParsePrivateKey(keyText)
	if err != nil {
		return nil, err
	}

	address, err := evm.GetAddress(prv)
	if err != nil {
		return nil, err
	}

	w := model.Wallet{Address: address.Hex(), PrivateKey: hexutil.Encode(crypto.FromECDSA(prv))}
	if err = svcCtx.WalletModel.Save(ctx, username, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetUserWallet 钱包不存在时返回nil
func GetUserWallet(ctx context.Context, svcCtx *svc.ServiceContext, username string) (*model.Wallet, error) {
	w, err := svcCtx.WalletModel.FindByUsername(ctx, username)
	if model.IsNotFound(err) {
		return nil, nil
	}
	return w, err
}

type TokenBalance struct {
	Symbol  string
	Address string
	Amount  decimal.Decimal
}

// ChannelTokenBalances 所有群组绑定代币中余额为正的部分
func ChannelTokenBalances(ctx context.Context, svcCtx *svc.ServiceContext, account string) []TokenBalance {
	bindings, err := svcCtx.ChannelModel.FindAll(ctx)
	if err != nil {
		logger.Warnf("[WalletHandler] 查询群组绑定失败, %v", err)
		return nil
	}

	addresses := lo.Uniq(lo.Map(bindings, func(b model.ChannelBinding, _ int) string {
		return strings.ToLower(b.ContractAddress)
	}))

	result := make([]TokenBalance, 0)
	for _, address := range addresses {
		balance, err := evm.GetTokenBalance(ctx, svcCtx.EthClient, address, account)
		if err != nil || balance.Sign() <= 0 {
			continue
		}

		meta, err := svcCtx.TokenMetaCache.GetTokenMeta(ctx, address)
		if err != nil {
			logger.Warnf("[WalletHandler] 查询代币元数据失败, token: %s, %v", address, err)
			continue
		}

		result = append(result, TokenBalance{
			Symbol:  meta.Symbol,
			Address: address,
			Amount:  evm.ParseUnits(balance, meta.Decimals),
		})
	}
	return result
}

func formatWalletInfo(ctx context.Context, svcCtx *svc.ServiceContext, w *model.Wallet) string {
	c := svcCtx.Config.Chain

	balance, err := evm.GetBalance(ctx, svcCtx.EthClient, w.Address)
	if err != nil {
		logger.Warnf("[WalletHandler] 查询余额失败, account: %s, %v", w.Address, err)
		balance = big.NewInt(0)
	}
	nativeAmount := evm.ParseUnits(balance, c.NativeCurrency.Decimals)

	text := fmt.Sprintf("💼 *Wallet Information*\n\n🔑 *Address:* `%s`\n💰 *Balance:* %s %s",
		w.Address, nativeAmount.Truncate(5), c.NativeCurrency.Symbol)

	if svcCtx.PriceCache != nil {
		if price, err := svcCtx.PriceCache.NativeUSD(ctx); err == nil {
			text += fmt.Sprintf(" (≈ %s)", utils.FormatUSD(nativeAmount.Mul(price)))
		}
	}

	tokens := ChannelTokenBalances(ctx, svcCtx, w.Address)
	if len(tokens) > 0 {
		lines := lo.Map(tokens, func(t TokenBalance, _ int) string {
			return fmt.Sprintf("• %s: %s", utils.EscapeMarkdown(t.Symbol), t.Amount.Truncate(4))
		})
		text += "\n\n🪙 *Tokens:*\n" + strings.Join(lines, "\n")
	}

	text += fmt.Sprintf("\n\n🔍 [View on Explorer](%s)", utils.GetBlockExplorerAccountLink(c.Id, w.Address))
	return text
}
