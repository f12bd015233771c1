package reference

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/transport"
)

const baseURL = "http://engine.test/api"

func newTestFetcher(t *testing.T, token string, mutate func(*config.Config)) (*Fetcher, *httpmock.MockTransport, *transport.Session) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	if mutate != nil {
		mutate(cfg)
	}
	session := transport.NewSession(token)
	f, err := New(cfg, session)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	mock := httpmock.NewMockTransport()
	f.WithTransport(mock)
	return f, mock, session
}

const tariffsBody = `[
	{"id":"dynamic_plus","name":"Dynamic Plus","provider":"EnBW","type":"dynamic","base_price":12.5,"kwh_price":0.25,"is_dynamic":true,"features":["green"],"contract_duration":1,"green_energy":true},
	{"id":"basis","name":"Basis","provider":"EnBW","type":"fixed","base_price":9.9,"kwh_price":0.32,"is_dynamic":false,"features":[],"contract_duration":12,"green_energy":false}
]`

func TestTariffsCachesAnswer(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", nil)
	mock.RegisterResponder(http.MethodGet, baseURL+PathTariffs, httpmock.NewStringResponder(http.StatusOK, tariffsBody))

	for i := 0; i < 2; i++ {
		tariffs, err := f.Tariffs(context.Background())
		if err != nil {
			t.Fatalf("tariffs: %v", err)
		}
		if len(tariffs) != 2 || tariffs[0].Name != "Dynamic Plus" || !tariffs[0].IsDynamic {
			t.Fatalf("unexpected tariffs: %+v", tariffs)
		}
	}
	if got := mock.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1 (second answer from cache)", got)
	}

	f.Purge()
	if _, err := f.Tariffs(context.Background()); err != nil {
		t.Fatalf("tariffs after purge: %v", err)
	}
	if got := mock.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls after purge = %d, want 2", got)
	}
}

func TestCacheDisabled(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", func(cfg *config.Config) { cfg.ReferenceCacheSize = 0 })
	mock.RegisterResponder(http.MethodGet, baseURL+PathUsageTips,
		httpmock.NewStringResponder(http.StatusOK, `{"tips":["LED-Beleuchtung spart Strom"],"savings_potential":"12% Ersparnis möglich"}`))

	for i := 0; i < 2; i++ {
		tips, err := f.UsageTips(context.Background())
		if err != nil {
			t.Fatalf("usage tips: %v", err)
		}
		if len(tips.Tips) != 1 {
			t.Fatalf("tips = %+v", tips)
		}
	}
	if got := mock.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestCacheExpires(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", func(cfg *config.Config) { cfg.ReferenceCacheTTL = 20 * time.Millisecond })
	mock.RegisterResponder(http.MethodGet, baseURL+PathMarketPrices,
		httpmock.NewStringResponder(http.StatusOK, `{"current_price":0.11,"currency":"EUR/kWh","timestamp":"2024-05-01T12:00:00","forecast":[{"hour":0,"price":0.09}]}`))

	prices, err := f.MarketPrices(context.Background())
	if err != nil {
		t.Fatalf("market prices: %v", err)
	}
	if prices.Currency != "EUR/kWh" || len(prices.Forecast) != 1 {
		t.Fatalf("prices = %+v", prices)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := f.MarketPrices(context.Background()); err != nil {
		t.Fatalf("market prices: %v", err)
	}
	if got := mock.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2 after expiry", got)
	}
}

func TestAttachesCredentialAndRequestID(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "secret", nil)

	var gotAuth, gotID string
	mock.RegisterResponder(http.MethodGet, baseURL+PathPriceChart, func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		gotID = req.Header.Get("X-Request-ID")
		return httpmock.NewStringResponse(http.StatusOK, `{"labels":[],"values":[]}`), nil
	})

	chart, err := f.PriceChart(transport.WithRequestID(context.Background(), "req-7"))
	if err != nil {
		t.Fatalf("price chart: %v", err)
	}
	if len(chart) == 0 {
		t.Fatalf("empty chart payload")
	}
	if gotAuth != "Bearer secret" || gotID != "req-7" {
		t.Fatalf("headers: auth=%q id=%q", gotAuth, gotID)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	f, mock, session := newTestFetcher(t, "stale", nil)
	mock.RegisterResponder(http.MethodGet, baseURL+PathPriceBreakdown,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"detail":"token expired"}`))

	_, err := f.PriceBreakdown(context.Background())

	var rejected transport.ErrUpstreamRejected
	if !errors.As(err, &rejected) || !rejected.Unauthorized() {
		t.Fatalf("expected unauthorized rejection, got %v", err)
	}
	if rejected.Detail != "token expired" {
		t.Fatalf("detail = %q", rejected.Detail)
	}
	if session.Token() != "" || session.Clears() != 1 {
		t.Fatalf("session not cleared: token=%q clears=%d", session.Token(), session.Clears())
	}
}

func TestNetworkError(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", nil)
	mock.RegisterResponder(http.MethodGet, baseURL+PathTariffs,
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	_, err := f.Tariffs(context.Background())
	var network transport.ErrNetwork
	if !errors.As(err, &network) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestBadBodyIsNotCached(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", nil)
	mock.RegisterResponder(http.MethodGet, baseURL+PathTariffs, httpmock.NewStringResponder(http.StatusOK, `{not json`))

	for i := 0; i < 2; i++ {
		_, err := f.Tariffs(context.Background())
		var parse transport.ErrParse
		if !errors.As(err, &parse) {
			t.Fatalf("expected ErrParse, got %v", err)
		}
	}
	if got := mock.GetTotalCallCount(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestCanceledContextMakesNoCall(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Tariffs(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.GetTotalCallCount() != 0 {
		t.Fatalf("canceled fetch must not reach the engine")
	}
}

func TestForecast(t *testing.T) {
	f, mock, _ := newTestFetcher(t, "", nil)
	mock.RegisterResponder(http.MethodGet, baseURL+PathForecast,
		httpmock.NewStringResponder(http.StatusOK, `{"forecast":[
			{"date":"2024-05-01","day_name":"Wednesday","hourly_prices":[{"hour":0,"price":0.08,"datetime":"2024-05-01T00:00:00"}],"avg_price":0.17,"min_price":0.08,"max_price":0.31}
		],"generated_at":"2024-05-01T09:00:00","currency":"EUR/kWh"}`))

	forecast, err := f.Forecast(context.Background())
	if err != nil {
		t.Fatalf("forecast: %v", err)
	}
	if len(forecast.Days) != 1 || forecast.Days[0].MaxPrice != 0.31 || len(forecast.Days[0].HourlyPrices) != 1 {
		t.Fatalf("forecast = %+v", forecast)
	}
	if forecast.Currency != "EUR/kWh" {
		t.Fatalf("currency = %q", forecast.Currency)
	}
}
