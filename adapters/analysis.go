package adapters

import (
	"context"
	"strconv"

	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/transport"
)

const (
	SourceBacktest = "backtest"
	SourceRisk     = "risk"
)

// Backtest replays an uploaded series against historic market prices.
type Backtest struct {
	client *transport.Client
	upload *models.Upload
}

// NewBacktest binds an upload.
func NewBacktest(client *transport.Client, upload *models.Upload) *Backtest {
	return &Backtest{client: client, upload: upload}
}

// Source is SourceBacktest.
func (b *Backtest) Source() string { return SourceBacktest }
func (b *Backtest) Class() transport.Class { return transport.ClassBacktest }

// Run uploads the series and returns the engine's replay.
func (b *Backtest) Run(ctx context.Context) (*models.Backtest, error) {
	if err := validateUpload(b.upload); err != nil {
		return nil, err
	}
	resp, err := b.client.PostMultipart(ctx, b.Class(), "/backtest-data", nil, *b.upload)
	if err != nil {
		return nil, err
	}

	var out models.Backtest
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	if len(out.HourlyData) == 0 && len(out.DailyData) == 0 {
		return nil, transport.Parsef("backtest response has no data")
	}
	return &out, nil
}

// Risk asks the engine for the price exposure of an uploaded series over the
// trailing days.
type Risk struct {
	client *transport.Client
	upload *models.Upload
	days   int
}

// NewRisk binds an upload. A non-positive days value lets the engine pick its window.
func NewRisk(client *transport.Client, upload *models.Upload, days int) *Risk {
	return &Risk{client: client, upload: upload, days: days}
}

// Source is SourceRisk.
func (r *Risk) Source() string { return SourceRisk }
func (r *Risk) Class() transport.Class { return transport.ClassRisk }

// Run uploads the series and returns the risk report.
func (r *Risk) Run(ctx context.Context) (*models.RiskReport, error) {
	if err := validateUpload(r.upload); err != nil {
		return nil, err
	}
	var fields map[string]string
	if r.days > 0 {
		fields = map[string]string{"days": strconv.Itoa(r.days)}
	}
	resp, err := r.client.PostMultipart(ctx, r.Class(), "/risk-analysis", fields, *r.upload)
	if err != nil {
		return nil, err
	}

	var out models.RiskReport
	if err := transport.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
