// Package horizons retrieves orbital elements and state vectors from the
// JPL Horizons API.
package horizons

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/dylan7474/planetaryLogger/internal/metrics"
)

const (
	// DefaultBaseURL is the public Horizons API endpoint.
	DefaultBaseURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

	maxBodyBytes = 50 << 20
)

// ClientConfig holds Horizons client settings.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration // per attempt (default: 30s)
	Retries           int           // extra attempts after the first (default: 3)
	RequestsPerSecond float64       // pacing across all requests (default: 2)
	DebugOut          io.Writer     // raw responses are copied here when non-nil
}

// Client performs Horizons API requests with retries and request pacing.
// Safe for concurrent use.
type Client struct {
	baseURL  string
	http     *retryablehttp.Client
	limiter  *rate.Limiter
	debugOut io.Writer
	logger   *slog.Logger
}

// NewClient creates a Client. Zero-valued config fields take defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = logger

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     rc,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		debugOut: cfg.DebugOut,
		logger:   logger,
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the JSON wrapper of a format=json Horizons response.
type envelope struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Query performs one Horizons request and returns the plain-text result.
// params must not include format; it is always json.
func (c *Client) Query(ctx context.Context, params url.Values) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("format", "json")
	target := c.baseURL + "?" + q.Encode()

	start := time.Now()
	body, err := c.get(ctx, target)
	if err != nil {
		metrics.RecordHorizonsRequest("error", time.Since(start))
		return "", err
	}
	metrics.RecordHorizonsRequest("ok", time.Since(start))

	if c.debugOut != nil {
		fmt.Fprintf(c.debugOut, "\n--- RAW API RESPONSE for COMMAND=%s ---\n%s\n-------------------------------------\n",
			params.Get("COMMAND"), body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decoding Horizons response: %w", err)
	}
	if env.Error != "" {
		return "", fmt.Errorf("horizons error: %s", env.Error)
	}
	if env.Result == "" {
		return "", errors.New("horizons response has no result")
	}
	return env.Result, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching Horizons data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Horizons reports bad queries as a JSON error with a 4xx status.
		var env envelope
		if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(raw, &env) == nil && env.Error != "" {
			return nil, fmt.Errorf("unexpected status code %d from %s: %s", resp.StatusCode, c.baseURL, env.Error)
		}
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, c.baseURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}
	return body, nil
}

// ElementsParams builds an osculating-elements query for one body,
// heliocentric, starting at the epoch date.
func ElementsParams(id string, epoch time.Time) url.Values {
	return url.Values{
		"COMMAND":    {quote(id)},
		"OBJ_DATA":   {"'NO'"},
		"MAKE_EPHEM": {"'YES'"},
		"EPHEM_TYPE": {"'ELEMENTS'"},
		"CENTER":     {"'@sun'"},
		"START_TIME": {quote(dateString(epoch))},
		"STOP_TIME":  {quote(dateString(epoch.AddDate(0, 0, 1)))},
	}
}

// VectorsParams builds a geocentric state-vector query for one body on one date.
func VectorsParams(id string, date time.Time) url.Values {
	return url.Values{
		"COMMAND":    {quote(id)},
		"OBJ_DATA":   {"'NO'"},
		"MAKE_EPHEM": {"'YES'"},
		"EPHEM_TYPE": {"'VECTORS'"},
		"CENTER":     {"'@399'"},
		"START_TIME": {quote(dateString(date))},
		"STOP_TIME":  {quote(dateString(date.AddDate(0, 0, 1)))},
		"STEP_SIZE":  {"'1d'"},
		"VEC_TABLE":  {"'1'"},
	}
}

func quote(s string) string {
	return "'" + s + "'"
}

func dateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
