package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/dynergy/tariff-compare/aggregator"
	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/transport"
)

const baseURL = "http://engine.test/api"

func newTestApp(t *testing.T) (*app, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RetryBackoff = time.Millisecond

	client, err := transport.New(cfg, transport.NewSession(""))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	mock := httpmock.NewMockTransport()
	client.WithTransport(mock)

	metrics := aggregator.NewMetrics()
	return &app{
		cfg:        cfg,
		client:     client,
		metrics:    metrics,
		aggregator: aggregator.New(cfg, client, metrics),
	}, mock
}

func TestCompareCommandPrintsQuotes(t *testing.T) {
	a, mock := newTestApp(t)
	mock.RegisterResponder(http.MethodPost, baseURL+"/calculate-basic",
		httpmock.NewStringResponder(http.StatusOK, `{"results":[
			{"tariff_name":"EnBW Fix","tariff_type":"fixed","monthly_cost":100,"annual_cost":1200},
			{"tariff_name":"EnBW Dynamic","tariff_type":"dynamic","monthly_cost":90,"annual_cost":1080}
		]}`))
	mock.RegisterResponder(http.MethodPost, baseURL+"/scrape/tado",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"detail":"site changed"}`))

	out := filepath.Join(t.TempDir(), "quotes.csv")
	cmd := newCompareCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--basic", "--provider", "tado", "--output", out, "--format", "csv"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("compare: %v", err)
	}

	got := stdout.String()
	dynamic := strings.Index(got, "EnBW Dynamic")
	fixed := strings.Index(got, "EnBW Fix")
	if dynamic < 0 || fixed < 0 || dynamic > fixed {
		t.Fatalf("quotes missing or out of order:\n%s", got)
	}
	if !strings.Contains(got, "2 quotes, 1 sources failed") {
		t.Fatalf("summary missing:\n%s", got)
	}
	if !strings.Contains(stderr.String(), "tado") {
		t.Fatalf("failure for tado not reported:\n%s", stderr.String())
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Fatalf("export file missing: %v", err)
	}
}

func TestCompareCommandNoSources(t *testing.T) {
	a, mock := newTestApp(t)
	cmd := newCompareCmd(a)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)

	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), aggregator.ErrNoSources.Error()) {
		t.Fatalf("err = %v, want no sources", err)
	}
	if mock.GetTotalCallCount() != 0 {
		t.Fatalf("calls = %d, want 0", mock.GetTotalCallCount())
	}
}

func TestCompareCommandAllFailed(t *testing.T) {
	a, mock := newTestApp(t)
	mock.RegisterResponder(http.MethodPost, baseURL+"/scrape/tado",
		httpmock.NewStringResponder(http.StatusBadGateway, `{"detail":"site changed"}`))

	cmd := newCompareCmd(a)
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SilenceUsage = true
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--provider", "tado"})

	err := cmd.ExecuteContext(context.Background())
	if err == nil || err.Error() != "no tariff data available, try again" {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(stderr.String(), "site changed") || strings.Contains(stderr.String(), "tado") {
		t.Fatalf("total failure leaked per-source detail:\n%s", stderr.String())
	}
}

func TestReadUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.csv")
	if err := os.WriteFile(path, []byte("datetime,value\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	upload, err := readUpload(path)
	if err != nil {
		t.Fatalf("read upload: %v", err)
	}
	if upload.Filename != "usage.csv" || len(upload.Content) == 0 {
		t.Fatalf("upload = %+v", upload)
	}

	if _, err := readUpload(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPrintFailuresSorted(t *testing.T) {
	var buf bytes.Buffer
	printFailures(&buf, map[string]models.FailureReason{
		"tibber": {Kind: models.FailureTimeout},
		"basic":  {Kind: models.FailureNetwork},
	})
	got := buf.String()
	if strings.Index(got, "basic") > strings.Index(got, "tibber") {
		t.Fatalf("failures not sorted:\n%s", got)
	}

	buf.Reset()
	printFailures(&buf, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output for no failures")
	}
}

func TestPrintAnalysis(t *testing.T) {
	var buf bytes.Buffer
	printAnalysis(&buf, &models.AnalysisResult{
		RequestID: "req-1",
		Backtest:  &models.Backtest{Metrics: map[string]float64{"total_cost": 3.2}},
		Risk:      &models.RiskReport{HistoricRisk: models.HistoricRisk{RiskExposure: "high"}},
	})
	got := buf.String()
	for _, want := range []string{"req-1", "total_cost", "Exposure", "high"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}
