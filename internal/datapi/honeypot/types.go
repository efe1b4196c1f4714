package honeypot

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Token struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     int    `json:"decimals"`
	Address      string `json:"address"`
	TotalHolders int    `json:"totalHolders"`
}

type HoneypotResult struct {
	IsHoneypot     bool   `json:"isHoneypot"`
	HoneypotReason string `json:"honeypotReason"`
}

type SimulationResult struct {
	BuyTax      decimal.Decimal `json:"buyTax"`
	SellTax     decimal.Decimal `json:"sellTax"`
	TransferTax decimal.Decimal `json:"transferTax"`
}

type Chain struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Currency  string `json:"currency"`
}

type PairInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Type    string `json:"type"`
}

type Pair struct {
	Pair      PairInfo        `json:"pair"`
	Reserves0 json.Number     `json:"reserves0"`
	Reserves1 json.Number     `json:"reserves1"`
	Liquidity decimal.Decimal `json:"liquidity"`
}

type Summary struct {
	Risk      string `json:"risk"`
	RiskLevel int    `json:"riskLevel"`
}

type Report struct {
	Token             Token             `json:"token"`
	WithToken         Token             `json:"withToken"`
	Summary           Summary           `json:"summary"`
	SimulationSuccess bool              `json:"simulationSuccess"`
	HoneypotResult    *HoneypotResult   `json:"honeypotResult"`
	SimulationResult  *SimulationResult `json:"simulationResult"`
	Chain             Chain             `json:"chain"`
	Pair              *Pair             `json:"pair"`
}
