package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/memorygame/metrics"
)

type fakeAPI struct {
	server *httptest.Server
	calls  atomic.Int32
	last   atomic.Value
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.calls.Add(1)
		api.last.Store(r.URL.String())
		handler(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) lastURL() string {
	v, _ := a.last.Load().(string)
	return v
}

func newTestClient(api *fakeAPI) *Client {
	now := func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return NewClient(api.server.URL, WithLogger(zerolog.Nop()), WithNow(now))
}

func rateHandler(to string, value float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"amount":100,"base":"EUR","date":"2024-03-14","rates":{"%s":%v}}`, to, value)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)

	c = NewClient("http://example.test/")
	assert.Equal(t, "http://example.test", c.BaseURL())
}

func TestListCurrencies(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/currencies", r.URL.Path)
		fmt.Fprint(w, `{"USD":"United States Dollar","EUR":"Euro","AUD":"Australian Dollar"}`)
	})
	c := newTestClient(api)

	names, err := c.ListCurrencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, names, 3)
	assert.Equal(t, "Euro", names["EUR"])

	list, err := c.Currencies(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"AUD", "EUR", "USD"}, []string{list[0].Code, list[1].Code, list[2].Code})
	assert.Equal(t, "AUD - Australian Dollar", list[0].String())
}

func TestListCurrencies_ServerError(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	c := newTestClient(api)

	before := testutil.ToFloat64(metrics.CurrencyRequests.WithLabelValues(OpListCurrencies, metrics.ResultError))

	names, err := c.ListCurrencies(context.Background())
	assert.Nil(t, names)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, OpListCurrencies, remote.Op)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
	assert.Contains(t, err.Error(), "status 500")

	after := testutil.ToFloat64(metrics.CurrencyRequests.WithLabelValues(OpListCurrencies, metrics.ResultError))
	assert.Equal(t, before+1, after)
}

func TestConvert(t *testing.T) {
	api := newFakeAPI(t, rateHandler("USD", 108.23))
	c := newTestClient(api)

	result, err := c.Convert(context.Background(), 100, "eur", "usd")
	require.NoError(t, err)
	assert.InDelta(t, 108.23, result, 1e-9)

	assert.Equal(t, "/latest?amount=100&from=EUR&to=USD", api.lastURL())
}

func TestConvert_IdentityShortCircuits(t *testing.T) {
	api := newFakeAPI(t, rateHandler("USD", 1))
	c := newTestClient(api)

	result, err := c.Convert(context.Background(), 42.5, "USD", "usd")
	require.NoError(t, err)
	assert.Equal(t, 42.5, result)

	result, err = c.ConvertOnDate(context.Background(), 7, "EUR", "EUR", "2020-01-02")
	require.NoError(t, err)
	assert.Equal(t, 7.0, result)

	assert.Zero(t, api.calls.Load())
}

func TestConvert_Failures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		})
		_, err := newTestClient(api).Convert(context.Background(), 1, "EUR", "XXX")

		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, http.StatusNotFound, remote.StatusCode)
		assert.Equal(t, OpConvert, remote.Op)
	})

	t.Run("missing rate", func(t *testing.T) {
		api := newFakeAPI(t, rateHandler("GBP", 0.85))
		_, err := newTestClient(api).Convert(context.Background(), 1, "EUR", "USD")

		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Zero(t, remote.StatusCode)
		assert.Contains(t, err.Error(), "no rate for USD")
	})

	t.Run("malformed body", func(t *testing.T) {
		api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"rates":`)
		})
		_, err := newTestClient(api).Convert(context.Background(), 1, "EUR", "USD")

		var remote *RemoteError
		assert.ErrorAs(t, err, &remote)
	})

	t.Run("unreachable server", func(t *testing.T) {
		api := newFakeAPI(t, rateHandler("USD", 1))
		c := newTestClient(api)
		api.server.Close()

		_, err := c.Convert(context.Background(), 1, "EUR", "USD")
		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Zero(t, remote.StatusCode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		api := newFakeAPI(t, rateHandler("USD", 1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(api).Convert(ctx, 1, "EUR", "USD")
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestConvert_InvalidInput(t *testing.T) {
	api := newFakeAPI(t, rateHandler("USD", 1))
	c := newTestClient(api)

	_, err := c.Convert(context.Background(), -1, "EUR", "USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = c.Convert(context.Background(), 1, "", "USD")
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	assert.Zero(t, api.calls.Load())
}

func TestConvertOnDate(t *testing.T) {
	api := newFakeAPI(t, rateHandler("JPY", 16250.5))
	c := newTestClient(api)

	result, err := c.ConvertOnDate(context.Background(), 100, "EUR", "JPY", "2024-03-01")
	require.NoError(t, err)
	assert.InDelta(t, 16250.5, result, 1e-9)
	assert.Equal(t, "/2024-03-01?amount=100&from=EUR&to=JPY", api.lastURL())

	t.Run("today is allowed", func(t *testing.T) {
		_, err := c.ConvertOnDate(context.Background(), 1, "EUR", "JPY", "2024-03-15")
		assert.NoError(t, err)
	})

	t.Run("future date", func(t *testing.T) {
		_, err := c.ConvertOnDate(context.Background(), 1, "EUR", "JPY", "2024-03-16")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("bad format", func(t *testing.T) {
		for _, date := range []string{"", "15/03/2024", "2024-13-01", "2024-3-1"} {
			_, err := c.ConvertOnDate(context.Background(), 1, "EUR", "JPY", date)
			assert.ErrorIs(t, err, ErrInvalidDate, date)
		}
	})
}

func TestFormatConversion(t *testing.T) {
	assert.Equal(t, "100 EUR = 108.23 USD", FormatConversion(100, "eur", "usd", 108.2311, ""))
	assert.Equal(t, "2.5 EUR = 0.00 BTC on 2024-01-31", FormatConversion(2.5, "EUR", "BTC", 0.0001, "2024-01-31"))
}
