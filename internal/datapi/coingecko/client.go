package coingecko

import (
	"context"
	"errors"
	"net/http"

	"github.com/carlmjohnson/requests"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseUrl        string
	transportProxy *http.Transport
}

func NewClient(baseUrl string, transportProxy *http.Transport) *Client {
	return &Client{baseUrl: baseUrl, transportProxy: transportProxy}
}

type simplePrice map[string]map[string]decimal.Decimal

// GetPrice 查询币种的法币价格, 例如 ethereum/usd
func (client *Client) GetPrice(ctx context.Context, id, vsCurrency string) (decimal.Decimal, error) {
	httpClient := new(http.Client)
	if client.transportProxy != nil {
		httpClient.Transport = client.transportProxy
	}

	var res simplePrice
	err := requests.URL(client.baseUrl).
		Path("/api/v3/simple/price").
		Param("ids", id).
		Param("vs_currencies", vsCurrency).
		Client(httpClient).
		ToJSON(&res).
		Fetch(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	price, ok := res[id][vsCurrency]
	if !ok || !price.IsPositive() {
		return decimal.Zero, errors.New("price not available")
	}
	return price, nil
}

func (client *Client) GetEthUsdPrice(ctx context.Context) (decimal.Decimal, error) {
	return client.GetPrice(ctx, "ethereum", "usd")
}
