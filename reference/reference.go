// Package reference reads the engine's static catalogue and market data. None
// of it takes part in aggregation, so answers are cached for a short while.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/transport"
)

const (
	PathTariffs        = "/tariffs"
	PathMarketPrices   = "/market-prices"
	PathForecast       = "/forecast"
	PathUsageTips      = "/usage-tips"
	PathPriceChart     = "/price-chart-data"
	PathPriceBreakdown = "/price-breakdown"
)

// Fetcher issues GET requests through a colly collector that shares the
// session credential with the transport client.
type Fetcher struct {
	baseURL   string
	session   *transport.Session
	collector *colly.Collector
	cache     *expirable.LRU[string, []byte]
}

// New builds a fetcher. A non-positive cache size disables caching.
func New(cfg *config.Config, session *transport.Session) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if session == nil {
		session = transport.NewSession("")
	}

	timeout := cfg.Timeouts.Reference
	if timeout <= 0 {
		timeout = cfg.Timeout
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		session:   session,
		collector: collector,
	}
	if cfg.ReferenceCacheSize > 0 {
		f.cache = expirable.NewLRU[string, []byte](cfg.ReferenceCacheSize, nil, cfg.ReferenceCacheTTL)
	}
	return f, nil
}

// WithTransport swaps the round tripper, mainly for tests.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Purge drops every cached answer.
func (f *Fetcher) Purge() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

// Tariffs returns the engine's tariff catalogue.
func (f *Fetcher) Tariffs(ctx context.Context) ([]models.ReferenceTariff, error) {
	var out []models.ReferenceTariff
	if err := f.get(ctx, PathTariffs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarketPrices returns the current price and the day-ahead curve.
func (f *Fetcher) MarketPrices(ctx context.Context) (*models.MarketPrices, error) {
	var out models.MarketPrices
	if err := f.get(ctx, PathMarketPrices, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Forecast returns the week-ahead price forecast.
func (f *Fetcher) Forecast(ctx context.Context) (*models.PriceForecast, error) {
	var out models.PriceForecast
	if err := f.get(ctx, PathForecast, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *Fetcher) UsageTips(ctx context.Context) (*models.UsageTips, error) {
	var out models.UsageTips
	if err := f.get(ctx, PathUsageTips, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PriceChart returns chart data as the engine shaped it.
func (f *Fetcher) PriceChart(ctx context.Context) (models.PriceChart, error) {
	var out json.RawMessage
	if err := f.get(ctx, PathPriceChart, &out); err != nil {
		return nil, err
	}
	return models.PriceChart(out), nil
}

// PriceBreakdown returns the price component breakdown as the engine shaped it.
func (f *Fetcher) PriceBreakdown(ctx context.Context) (models.PriceBreakdown, error) {
	var out json.RawMessage
	if err := f.get(ctx, PathPriceBreakdown, &out); err != nil {
		return nil, err
	}
	return models.PriceBreakdown(out), nil
}

// get decodes the answer for path into v. Only answers that decode are cached.
func (f *Fetcher) get(ctx context.Context, path string, v any) error {
	if f.cache != nil {
		if body, ok := f.cache.Get(path); ok {
			slog.Debug("reference cache hit", slog.String("path", path))
			return transport.DecodeJSON(&transport.Response{Status: http.StatusOK, Body: body}, v)
		}
	}

	body, err := f.fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := transport.DecodeJSON(&transport.Response{Status: http.StatusOK, Body: body}, v); err != nil {
		return err
	}
	if f.cache != nil {
		f.cache.Add(path, body)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := f.baseURL + path
	c := f.collector.Clone()

	var (
		body     []byte
		fetchErr error
		token    string
	)
	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		r.Headers.Set("Accept", "application/json")
		token = f.session.Token()
		if token != "" {
			r.Headers.Set("Authorization", "Bearer "+token)
		}
		if id := transport.RequestID(ctx); id != "" {
			r.Headers.Set("X-Request-ID", id)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			slog.Debug("reference response",
				slog.String("url", target),
				slog.Int("status", r.StatusCode),
				slog.Duration("duration", time.Since(start)),
			)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		if status == 0 {
			fetchErr = transport.Classify(err)
			return
		}
		if status == http.StatusUnauthorized && f.session.ClearIf(token) {
			slog.Warn("engine rejected credential, session cleared", slog.String("url", target))
		}
		fetchErr = transport.Rejected(status, r.Body)
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if fetchErr != nil {
			return nil, fetchErr
		}
		if err != nil {
			return nil, transport.Classify(err)
		}
		return body, nil
	}
}
