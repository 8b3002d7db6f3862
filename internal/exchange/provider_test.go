package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ledger/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviderConfig(baseURL string) config.RateProviderConfig {
	return config.RateProviderConfig{
		PairURL:    baseURL + "/{key}/pair/{from}/{to}",
		BulkURL:    baseURL + "/{key}/latest/{from}",
		APIKey:     "k",
		RatePath:   "$.conversion_rate",
		RatesPath:  "$.conversion_rates",
		ResultPath: "$.result",
		ResultOK:   "success",
		Timeout:    time.Second,
	}
}

func TestHTTPProviderPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/k/pair/USD/RWF", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","conversion_rate":1300.25}`))
	}))
	defer srv.Close()

	rate, err := NewHTTPProvider(testProviderConfig(srv.URL)).Pair(context.Background(), "USD", "RWF")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1300.25")), rate.String())
}

func TestHTTPProviderBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/k/latest/USD", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1,"RWF":1300,"EUR":0.92,"BAD":"x"}}`))
	}))
	defer srv.Close()

	rates, err := NewHTTPProvider(testProviderConfig(srv.URL)).Bulk(context.Background(), "USD")
	require.NoError(t, err)
	assert.Len(t, rates, 3)
	assert.True(t, rates["EUR"].Equal(decimal.RequireFromString("0.92")))
}

func TestHTTPProviderRejectsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(testProviderConfig(srv.URL)).Pair(context.Background(), "USD", "RWF")
	assert.Error(t, err)
}

func TestHTTPProviderRejectsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(testProviderConfig(srv.URL)).Bulk(context.Background(), "USD")
	assert.Error(t, err)
}

func TestHTTPProviderRejectsNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","conversion_rate":0}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(testProviderConfig(srv.URL)).Pair(context.Background(), "USD", "RWF")
	assert.Error(t, err)
}

func TestHTTPProviderTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"result":"success","conversion_rate":1}`))
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	_, err := NewHTTPProvider(cfg).Pair(context.Background(), "USD", "RWF")
	assert.Error(t, err)
}
