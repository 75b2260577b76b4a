package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type RESTClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewRESTClient builds a client for the MEXC spot v3 API rooted at baseURL
// (e.g. https://api.mexc.com/api/v3). rps <= 0 disables request pacing.
func NewRESTClient(baseURL, apiKey, apiSecret string, timeout time.Duration, rps float64) *RESTClient {
	limit, burst := rate.Inf, 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		now:        time.Now,
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetTickerPrice returns the last price of symbol. A missing or zero price is
// returned as decimal.Zero without error: the pair is not tradeable yet.
func (c *RESTClient) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := c.baseURL + tickerPricePath + "?symbol=" + url.QueryEscape(symbol)

	body, err := c.do(ctx, http.MethodGet, endpoint, false)
	if err != nil {
		return decimal.Zero, err
	}

	var ticker TickerPriceResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}
	if ticker.Price == "" {
		return decimal.Zero, nil
	}

	price, err := decimal.NewFromString(ticker.Price.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", ticker.Price, err)
	}
	return price, nil
}

// PlaceOrder signs params and submits them to POST /order. A response carrying
// msg is returned as *APIError.
func (c *RESTClient) PlaceOrder(ctx context.Context, params []Param) (*OrderResponse, error) {
	query := SignedQuery(params, c.now().UnixMilli(), c.apiSecret)
	endpoint := c.baseURL + orderPath + "?" + query

	body, err := c.do(ctx, http.MethodPost, endpoint, true)
	if err != nil {
		return nil, err
	}

	var order OrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if order.Msg != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Code: order.Code, Msg: order.Msg}
	}
	if order.OrderID == "" {
		return nil, fmt.Errorf("order response without orderId")
	}
	return &order, nil
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// Construct the request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if signed {
		req.Header.Set(APIKeyHeader, c.apiKey)
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Msg: strings.TrimSpace(string(body))}
		var envelope errorResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Msg != "" {
			apiErr.Code, apiErr.Msg = envelope.Code, envelope.Msg
		}
		return nil, apiErr
	}

	return body, nil
}
