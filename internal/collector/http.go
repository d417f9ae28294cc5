package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"RateKeeper/internal/calculator"

	"github.com/holiman/uint256"
	"golang.org/x/time/rate"
)

// HTTPReserve implements Reserve against a REST endpoint that serves the
// reserve totals as decimal strings.
type HTTPReserve struct {
	BaseURL string
	Asset   string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
	// CacheTTL lets the three totals of one read share a single request.
	CacheTTL time.Duration

	mu       sync.Mutex
	cached   *reserveTotals
	cachedAt time.Time
	now      func() time.Time
}

// reserveResponse is the expected JSON shape from the reserve API.
type reserveResponse struct {
	LiquidityTokenSupply string `json:"liquidity_token_supply"`
	TotalVariableDebt    string `json:"total_variable_debt"`
	TotalStableDebt      string `json:"total_stable_debt"`
}

type reserveTotals struct {
	supply, variableDebt, stableDebt *uint256.Int
}

// NewHTTPReserve creates a new reserve reader with optional proxy support.
// requestsPerSecond <= 0 disables throttling.
func NewHTTPReserve(baseURL, asset, apiKey, proxyURL string, requestsPerSecond float64) *HTTPReserve {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &HTTPReserve{
		BaseURL: baseURL,
		Asset:   asset,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Limiter:  limiter,
		CacheTTL: 2 * time.Second,
		now:      time.Now,
	}
}

func (r *HTTPReserve) Name() string { return "http" }

func (r *HTTPReserve) TotalSupplyOfLiquidityToken(ctx context.Context) (*uint256.Int, error) {
	t, err := r.totals(ctx)
	if err != nil {
		return nil, err
	}
	return t.supply.Clone(), nil
}

func (r *HTTPReserve) TotalVariableDebt(ctx context.Context) (*uint256.Int, error) {
	t, err := r.totals(ctx)
	if err != nil {
		return nil, err
	}
	return t.variableDebt.Clone(), nil
}

func (r *HTTPReserve) TotalStableDebt(ctx context.Context) (*uint256.Int, error) {
	t, err := r.totals(ctx)
	if err != nil {
		return nil, err
	}
	return t.stableDebt.Clone(), nil
}

func (r *HTTPReserve) totals(ctx context.Context) (*reserveTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil && r.now().Sub(r.cachedAt) < r.CacheTTL {
		return r.cached, nil
	}
	t, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.cached, r.cachedAt = t, r.now()
	return t, nil
}

func (r *HTTPReserve) fetch(ctx context.Context) (*reserveTotals, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch reserve: %w", err)
	}
	endpoint := fmt.Sprintf("%s/api/v1/reserves/%s", r.BaseURL, url.PathEscape(r.Asset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reserve: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch reserve: status %d, body: %s", resp.StatusCode, string(body))
	}
	var payload reserveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reserve: %w", err)
	}

	t := &reserveTotals{}
	if t.supply, err = calculator.ParseRay(payload.LiquidityTokenSupply); err != nil {
		return nil, fmt.Errorf("liquidity_token_supply: %w", err)
	}
	if t.variableDebt, err = calculator.ParseRay(payload.TotalVariableDebt); err != nil {
		return nil, fmt.Errorf("total_variable_debt: %w", err)
	}
	if t.stableDebt, err = calculator.ParseRay(payload.TotalStableDebt); err != nil {
		return nil, fmt.Errorf("total_stable_debt: %w", err)
	}
	return t, nil
}
