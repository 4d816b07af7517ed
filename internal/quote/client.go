// Package quote fetches batched realtime quotes from the exchange's market information service.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/volspike/internal/logger"
	"github.com/rewired-gh/volspike/internal/models"
)

// DefaultBaseURL is the public MIS quote endpoint.
const DefaultBaseURL = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"

// ErrUpstream is returned when the service answers but reports a failure.
var ErrUpstream = errors.New("quote service error")

// Client provides access to the MIS quote API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a quote client. timeout bounds every HTTP call; requestsPerSecond
// paces calls (zero or less disables pacing); maxRetries is the number of attempts per call.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64, maxRetries int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: maxRetries,
		retryDelay: time.Second,
	}
}

// misResponse is the envelope returned by getStockInfo.jsp
type misResponse struct {
	MsgArray  []misQuote `json:"msgArray"`
	RTCode    string     `json:"rtcode"`
	RTMessage string     `json:"rtmessage"`
}

// misQuote is one entry of msgArray; every value is a string.
type misQuote struct {
	Code      string `json:"c"`
	Name      string `json:"n"`
	Latest    string `json:"z"`
	Volume    string `json:"v"`
	Bids      string `json:"b"`
	Asks      string `json:"a"`
	Yesterday string `json:"y"`
	TimeMilli string `json:"tlong"`
}

// Channel returns the MIS channel name for an instrument, e.g. tse_2330.tw.
func Channel(inst models.Instrument) string {
	prefix := "tse"
	if inst.Exchange == models.ExchangeTPEX {
		prefix = "otc"
	}
	return fmt.Sprintf("%s_%s.tw", prefix, inst.Symbol)
}

// GetBatch fetches quotes for every instrument in one call. Symbols the service
// does not return, or returns without a usable volume, are absent from the map.
func (c *Client) GetBatch(ctx context.Context, instruments []models.Instrument) (map[string]models.Quote, error) {
	if len(instruments) == 0 {
		return map[string]models.Quote{}, nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	channels := make([]string, len(instruments))
	for i, inst := range instruments {
		channels[i] = Channel(inst)
	}
	u.RawQuery = "ex_ch=" + strings.Join(channels, "|") + "&json=1&delay=0"

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	var body misResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}
	if body.RTCode != "" && body.RTCode != "0000" {
		return nil, fmt.Errorf("%w: %s %s", ErrUpstream, body.RTCode, body.RTMessage)
	}

	quotes := make(map[string]models.Quote, len(body.MsgArray))
	for _, mq := range body.MsgArray {
		q, err := mq.toQuote()
		if err != nil {
			logger.Debug("Dropping quote for %s: %v", mq.Code, err)
			continue
		}
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

func (m misQuote) toQuote() (models.Quote, error) {
	symbol := strings.TrimSpace(m.Code)
	if symbol == "" {
		return models.Quote{}, errors.New("empty code")
	}
	vol, ok := parseField(m.Volume)
	if !ok {
		return models.Quote{}, fmt.Errorf("invalid accumulated volume %q", m.Volume)
	}

	q := models.Quote{
		Symbol:            symbol,
		Name:              strings.TrimSpace(m.Name),
		AccumulatedVolume: vol,
		BestBids:          parseLevels(m.Bids),
		BestAsks:          parseLevels(m.Asks),
	}
	if price, ok := parseField(m.Latest); ok && price > 0 {
		q.LatestTradePrice = &price
	}
	if ms, err := strconv.ParseInt(strings.TrimSpace(m.TimeMilli), 10, 64); err == nil && ms > 0 {
		q.Timestamp = time.UnixMilli(ms)
	}
	return q, nil
}

// parseField reads a numeric MIS value. "-" and empty strings are missing.
func parseField(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// parseLevels splits an underscore-separated order book side. Missing levels
// are kept as zero so positions stay aligned.
func parseLevels(s string) []float64 {
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(s), "_"), "_")
	levels := make([]float64, 0, len(parts))
	for _, p := range parts {
		if p == "" && len(parts) == 1 {
			break
		}
		v, _ := parseField(p)
		levels = append(levels, v)
	}
	return levels
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
