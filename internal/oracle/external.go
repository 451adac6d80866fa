package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalSource fetches spot prices from an HTTP price API. It is a
// best-effort upstream; callers treat any error as a signal to fall back
// to the simulated feed.
type ExternalSource struct {
	baseURL string
	client  *http.Client
}

// NewExternalSource creates an ExternalSource for the given endpoint. The
// endpoint is expected to serve GET {baseURL}?symbol=ETH with a JSON body
// {"symbol": "ETH", "price": "3012.44"}.
func NewExternalSource(baseURL string, timeout time.Duration) *ExternalSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ExternalSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type externalQuoteResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Quote fetches the current price for a symbol.
func (s *ExternalSource) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s?symbol=%s", s.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle: external request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("oracle: external fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return decimal.Zero, fmt.Errorf("oracle: external fetch %s: unexpected status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var out externalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("oracle: external decode %s: %w", symbol, err)
	}
	if !out.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("oracle: external fetch %s: non-positive price %s", symbol, out.Price)
	}

	return out.Price, nil
}
