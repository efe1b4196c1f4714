package honeypot

import (
	"context"
	"net/http"
	"strconv"

	"github.com/carlmjohnson/requests"
)

type Client struct {
	baseUrl        string
	chainId        int64
	transportProxy *http.Transport
}

func NewClient(baseUrl string, chainId int64, transportProxy *http.Transport) *Client {
	return &Client{baseUrl: baseUrl, chainId: chainId, transportProxy: transportProxy}
}

func (client *Client) IsHoneypot(ctx context.Context, address string) (*Report, error) {
	httpClient := new(http.Client)
	if client.transportProxy != nil {
		httpClient.Transport = client.transportProxy
	}

	var report Report
	err := requests.URL(client.baseUrl).
		Path("/v2/IsHoneypot").
		Param("address", address).
		Param("chainID", strconv.FormatInt(client.chainId, 10)).
		Client(httpClient).
		ToJSON(&report).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
