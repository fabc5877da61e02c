package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/memorygame/metrics"
)

// DefaultBaseURL is the public Frankfurter API
const DefaultBaseURL = "https://api.frankfurter.app"

// DateLayout is the format of historical rate dates
const DateLayout = "2006-01-02"

// Operation names used in errors, logs and metrics
const (
	OpListCurrencies = "list_currencies"
	OpConvert        = "convert"
	OpConvertOnDate  = "convert_on_date"
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// RemoteError reports a request to the rate API that produced no usable
// result. StatusCode is zero when the request never got a response.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("currency %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("currency %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Currency is a supported currency code and its display name
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (c Currency) String() string {
	return c.Code + " - " + c.Name
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the default 10 second timeout client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for failed requests
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithNow sets the time source used to reject future dates
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client talks to the exchange-rate API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a client for baseURL, or DefaultBaseURL when empty
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.With().Str("component", "currency").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client calls
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListCurrencies returns the supported currencies keyed by code
func (c *Client) ListCurrencies(ctx context.Context) (map[string]string, error) {
	var names map[string]string
	err := c.get(ctx, OpListCurrencies, c.baseURL+"/currencies", &names)
	metrics.ObserveCurrencyRequest(OpListCurrencies, err)
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Currencies returns the supported currencies sorted by code
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	names, err := c.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]Currency, 0, len(names))
	for code, name := range names {
		list = append(list, Currency{Code: code, Name: name})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Code < list[j].Code
	})
	return list, nil
}

// Convert converts amount at the latest rate
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	return c.convert(ctx, OpConvert, "latest", amount, from, to)
}

// ConvertOnDate converts amount at the rate published on date (YYYY-MM-DD)
func (c *Client) ConvertOnDate(ctx context.Context, amount float64, from, to, date string) (float64, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not %s", ErrInvalidDate, date, "YYYY-MM-DD")
	}
	today := c.now().Format(DateLayout)
	if day.Format(DateLayout) > today {
		return 0, fmt.Errorf("%w: %s is after %s", ErrInvalidDate, date, today)
	}
	return c.convert(ctx, OpConvertOnDate, day.Format(DateLayout), amount, from, to)
}

func (c *Client) convert(ctx context.Context, op, path string, amount float64, from, to string) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: from and to are required", ErrInvalidCurrency)
	}

	if from == to {
		return amount, nil
	}

	query := url.Values{}
	query.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	query.Set("from", from)
	query.Set("to", to)
	endpoint := c.baseURL + "/" + path + "?" + query.Encode()

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	err := c.get(ctx, op, endpoint, &body)
	if err == nil {
		if _, ok := body.Rates[to]; !ok {
			err = &RemoteError{Op: op, Err: fmt.Errorf("response has no rate for %s", to)}
			c.logger.Warn().Err(err).Str("op", op).Msg("exchange-rate request failed")
		}
	}
	metrics.ObserveCurrencyRequest(op, err)
	if err != nil {
		return 0, err
	}
	return body.Rates[to], nil
}

// get performs a GET and decodes the JSON body into out. Every failure is
// logged and returned as *RemoteError.
func (c *Client) get(ctx context.Context, op, endpoint string, out interface{}) error {
	fail := func(status int, err error) error {
		remote := &RemoteError{Op: op, StatusCode: status, Err: err}
		c.logger.Warn().Err(err).Str("op", op).Int("status", status).Str("url", endpoint).Msg("exchange-rate request failed")
		return remote
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// FormatConversion renders a conversion result with two decimals, adding
// the date for historical rates
func FormatConversion(amount float64, from, to string, result float64, date string) string {
	text := fmt.Sprintf("%s %s = %.2f %s",
		strconv.FormatFloat(amount, 'f', -1, 64), strings.ToUpper(from), result, strings.ToUpper(to))
	if date != "" {
		text += " on " + date
	}
	return text
}
