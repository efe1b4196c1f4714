package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	// MaxUint256 represents the maximum value for uint256 (2^256 - 1)
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	transferEventSig   = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	withdrawalEventSig = crypto.Keccak256Hash([]byte("Withdrawal(address,uint256)"))
)

func ParseETH(value *big.Int) decimal.Decimal {
	return ParseUnits(value, 18)
}

func ParseUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

func FormatETH(amount decimal.Decimal) *big.Int {
	return FormatUnits(amount, 18)
}

// FormatUnits 转换为最小单位, 超出精度的部分截断
func FormatUnits(amount decimal.Decimal, decimals uint8) *big.Int {
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

func EncodeERC20ApproveInput(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, errors.New("amount cannot be nil")
	}

	data, err := ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}
	return data, nil
}

func DecodeERC20ApproveInput(input []byte) (spender common.Address, amount *big.Int, err error) {
	if len(input) < 4 {
		return common.Address{}, nil, errors.New("input data too short")
	}

	method := ERC20ABI.Methods["approve"]
	if !bytes.Equal(input[:4], method.ID) {
		return common.Address{}, nil, errors.New("input data is not for approve function")
	}

	values, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to unpack approve input: %w", err)
	}
	if len(values) != 2 {
		return common.Address{}, nil, fmt.Errorf("expected 2 parameters, got %d", len(values))
	}

	spender, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, nil, errors.New("failed to parse spender address")
	}
	amount, ok = values[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, errors.New("failed to parse amount")
	}
	return spender, amount, nil
}

func GetAddress(prv *ecdsa.PrivateKey) (common.Address, error) {
	publicKeyECDSA, ok := prv.Public().(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, errors.New("cannot assert type: publicKey is not of type *ecdsa.PublicKey")
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

func GetBalance(ctx context.Context, client Client, ownerAddress string) (*big.Int, error) {
	return client.BalanceAt(ctx, common.HexToAddress(ownerAddress), nil)
}

// callERC20 调用只读方法并解码单个返回值
func callERC20(ctx context.Context, client Client, token common.Address, out any, method string, args ...any) error {
	data, err := ERC20ABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}

	if err = ERC20ABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return nil
}

func GetTokenMeta(ctx context.Context, client Client, tokenAddress string) (*Metadata, error) {
	var meta Metadata
	tokenAddr := common.HexToAddress(tokenAddress)

	// 获取代币名称
	if err := callERC20(ctx, client, tokenAddr, &meta.Name, "name"); err != nil {
		return nil, err
	}

	// 获取代币符号
	if err := callERC20(ctx, client, tokenAddr, &meta.Symbol, "symbol"); err != nil {
		return nil, err
	}

	// 获取代币精度
	if err := callERC20(ctx, client, tokenAddr, &meta.Decimals, "decimals"); err != nil {
		return nil, err
	}

	return &meta, nil
}

func GetTokenTotalSupply(ctx context.Context, client Client, tokenAddress string) (*big.Int, error) {
	var totalSupply *big.Int
	err := callERC20(ctx, client, common.HexToAddress(tokenAddress), &totalSupply, "totalSupply")
	return totalSupply, err
}

func GetTokenBalance(ctx context.Context, client Client, tokenAddress, ownerAddress string) (*big.Int, error) {
	var balance *big.Int
	err := callERC20(ctx, client, common.HexToAddress(tokenAddress), &balance, "balanceOf", common.HexToAddress(ownerAddress))
	return balance, err
}

func GetTokenAllowance(ctx context.Context, client Client, tokenAddress, ownerAddress, spenderAddress string) (*big.Int, error) {
	var allowance *big.Int
	err := callERC20(ctx, client, common.HexToAddress(tokenAddress), &allowance, "allowance",
		common.HexToAddress(ownerAddress), common.HexToAddress(spenderAddress))
	return allowance, err
}

// GetTokenBalanceChanges 从收据的Transfer事件统计账户的代币变动
func GetTokenBalanceChanges(receipt *types.Receipt, ownerAddress string) map[common.Address]*big.Int {
	changes := make(map[common.Address]*big.Int)
	ownerAddr := common.HexToAddress(ownerAddress)
	for _, log := range receipt.Logs {
		if len(log.Topics) < 3 || log.Topics[0] != transferEventSig {
			continue
		}

		from := common.BytesToAddress(log.Topics[1].Bytes())
		to := common.BytesToAddress(log.Topics[2].Bytes())
		if from != ownerAddr && to != ownerAddr {
			continue
		}

		amount := new(big.Int).SetBytes(log.Data)
		if from == ownerAddr {
			amount.Neg(amount)
		}

		if v, ok := changes[log.Address]; ok {
			changes[log.Address] = new(big.Int).Add(v, amount)
		} else {
			changes[log.Address] = amount
		}
	}
	return changes
}

// GetWETHWithdrawn 从收据的Withdrawal事件统计src解包的原生币数量
func GetWETHWithdrawn(receipt *types.Receipt, weth, src common.Address) (*big.Int, bool) {
	total := big.NewInt(0)
	found := false
	for _, log := range receipt.Logs {
		if log.Address != weth || len(log.Topics) < 2 || log.Topics[0] != withdrawalEventSig {
			continue
		}
		if common.BytesToAddress(log.Topics[1].Bytes()) != src {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(log.Data))
		found = true
	}
	return total, found
}
