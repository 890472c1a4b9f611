package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultFeedURL = "https://api.coingecko.com/api/v3/simple/price?ids=dogecoin&vs_currencies=usd"

var ErrInvalidRate = errors.New("invalid rate response")

// Fetcher returns the current DOGE/USD price.
type Fetcher interface {
	Fetch(ctx context.Context) (float64, error)
}

// CoinGeckoFetcher reads the simple price endpoint, {"dogecoin": {"usd": 0.12}}.
type CoinGeckoFetcher struct {
	url    string
	client *http.Client
}

func NewCoinGeckoFetcher(url string, timeout time.Duration) *CoinGeckoFetcher {
	if url == "" {
		url = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoFetcher{url: url, client: &http.Client{Timeout: timeout}}
}

func (f *CoinGeckoFetcher) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var payload struct {
		Dogecoin struct {
			USD float64 `json:"usd"`
		} `json:"dogecoin"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	if payload.Dogecoin.USD <= 0 {
		return 0, ErrInvalidRate
	}
	return payload.Dogecoin.USD, nil
}
