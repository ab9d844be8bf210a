package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"taxledger/internal/core"
)

// Provider returns the latest rates quoted against GBP.
type Provider interface {
	Latest(ctx context.Context) (Table, error)
}

// HTTPProvider reads a {"base":"GBP","rates":{...}} document from URL.
type HTTPProvider struct {
	URL    string
	Client *http.Client
}

// NewHTTPProvider returns a provider with a pooled client bounded by timeout.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{URL: url, Client: newHTTPClient(timeout)}
}

type latestResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (p *HTTPProvider) Latest(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build FX request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch FX rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Table{}, fmt.Errorf("fetch FX rates: unexpected status %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Table{}, fmt.Errorf("decode FX rates: %w", err)
	}
	if core.NormalizeCode(body.Base) != core.BaseCurrency {
		return Table{}, fmt.Errorf("FX provider quoted against %q, want %s", body.Base, core.BaseCurrency)
	}
	if len(body.Rates) == 0 {
		return Table{}, fmt.Errorf("FX provider returned no rates")
	}

	t := Table{Base: core.BaseCurrency, Rates: core.Rates{core.BaseCurrency: decimal.NewFromInt(1)}}
	for code, rate := range body.Rates {
		if rate.IsPositive() {
			t.Rates[core.NormalizeCode(code)] = rate
		}
	}
	return t, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
