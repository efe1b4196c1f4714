package evm

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidPrivateKey = errors.New("invalid private key")

// GenerateKey 生成新私钥, 返回带0x前缀的十六进制
func GenerateKey() (privateKeyHex string, address string, err error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return "", "", err
	}

	addr, err := GetAddress(privateKey)
	if err != nil {
		return "", "", err
	}
	return hexutil.Encode(crypto.FromECDSA(privateKey)), addr.Hex(), nil
}

// ParsePrivateKey 接受带或不带0x前缀的32字节十六进制私钥
func ParsePrivateKey(text string) (*ecdsa.PrivateKey, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(text) != 64 {
		return nil, ErrInvalidPrivateKey
	}

	privateKey, err := crypto.HexToECDSA(text)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	return privateKey, nil
}
