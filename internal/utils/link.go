package utils

import "fmt"

func GetNetworkName(chainId int64) string {
	switch chainId {
	case 1:
		return "Ethereum"
	case 5:
		return "Goerli"
	case 56:
		return "BSC"
	case 8453:
		return "Base"
	case 11155111:
		return "Sepolia"
	}
	return ""
}

func getBlockExplorer(chainId int64) string {
	switch chainId {
	case 1:
		return "https://etherscan.io"
	case 5:
		return "https://goerli.etherscan.io"
	case 56:
		return "https://bscscan.com"
	case 8453:
		return "https://basescan.org"
	case 11155111:
		return "https://sepolia.etherscan.io"
	}
	return "https://etherscan.io"
}

func GetBlockExplorerTxLink(chainId int64, hash string) string {
	return fmt.Sprintf("%s/tx/%s", getBlockExplorer(chainId), hash)
}

func GetBlockExplorerTokenLink(chainId int64, token string) string {
	return fmt.Sprintf("%s/token/%s", getBlockExplorer(chainId), token)
}

func GetBlockExplorerAccountLink(chainId int64, account string) string {
	return fmt.Sprintf("%s/address/%s", getBlockExplorer(chainId), account)
}

func GetGeckoTerminalTokenLink(chainId int64, token string) string {
	switch chainId {
	case 56:
		return fmt.Sprintf("https://www.geckoterminal.com/bsc/tokens/%s", token)
	case 8453:
		return fmt.Sprintf("https://www.geckoterminal.com/base/tokens/%s", token)
	}
	return fmt.Sprintf("https://www.geckoterminal.com/eth/tokens/%s", token)
}

func GetHoneypotLink(chainId int64, token string) string {
	switch chainId {
	case 56:
		return fmt.Sprintf("https://honeypot.is/bsc?address=%s", token)
	case 8453:
		return fmt.Sprintf("https://honeypot.is/base?address=%s", token)
	}
	return fmt.Sprintf("https://honeypot.is/ethereum?address=%s", token)
}
