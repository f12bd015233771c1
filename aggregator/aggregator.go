// Package aggregator fans a comparison out to every selected source, waits
// for all of them and merges the answers into one ordered result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dynergy/tariff-compare/adapters"
	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/parser"
	"github.com/dynergy/tariff-compare/transport"
)

var (
	// ErrAllProvidersFailed is matched by every AllProvidersFailedError.
	ErrAllProvidersFailed = errors.New("no tariff data available, try again")
	// ErrNoSources is returned for an empty selection.
	ErrNoSources = errors.New("no data source selected")
)

// AllProvidersFailedError is the only fatal outcome of an aggregation. The
// per-source reasons are kept for logs; callers show the generic message.
type AllProvidersFailedError struct {
	RequestID string
	Failures  map[string]models.FailureReason
}

func (e *AllProvidersFailedError) Error() string {
	return ErrAllProvidersFailed.Error()
}

func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Aggregator owns the adapters' shared client and the observability hooks.
type Aggregator struct {
	cfg     *config.Config
	client  *transport.Client
	metrics *Metrics
	retry   retryPolicy
	tracer  trace.Tracer
}

// New builds an aggregator. metrics may be nil.
func New(cfg *config.Config, client *transport.Client, metrics *Metrics) *Aggregator {
	return &Aggregator{
		cfg:     cfg,
		client:  client,
		metrics: metrics,
		retry:   newRetryPolicy(cfg, metrics),
		tracer:  otel.Tracer("github.com/dynergy/tariff-compare/aggregator"),
	}
}

// Plan turns a selection into the adapters a comparison dispatches.
func (a *Aggregator) Plan(sel models.Selection, params models.CompareParams) ([]adapters.Adapter, error) {
	if sel.Empty() {
		return nil, ErrNoSources
	}

	var plan []adapters.Adapter
	if sel.Basic {
		plan = append(plan, adapters.NewCalculation(a.client, params.Profile, a.cfg.CalculationProvider))
	}
	if sel.CSV {
		plan = append(plan, adapters.NewCSV(a.client, params.Upload, params.Profile.HouseholdSize, a.cfg.CalculationProvider))
	}

	base := models.ProviderRequest{
		ZipCode:           params.ZipCode,
		AnnualConsumption: params.Profile.Annual(),
		Headless:          params.Headless,
		DebugMode:         params.Debug,
	}
	seen := make(map[string]struct{}, len(sel.Providers))
	for _, p := range sel.Providers {
		id := parser.NormalizeProviderID(p)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		req := base
		req.ProviderID = id
		plan = append(plan, adapters.NewScrape(a.client, req))
	}
	if sel.Multi {
		plan = append(plan, adapters.NewMultiScrape(a.client, base, sel.MultiProviders))
	}
	return plan, nil
}

// Compare runs every selected source and merges their quotes.
func (a *Aggregator) Compare(ctx context.Context, sel models.Selection, params models.CompareParams) (*models.AggregationResult, error) {
	plan, err := a.Plan(sel, params)
	if err != nil {
		return nil, err
	}
	return a.Run(ctx, plan)
}

// Run dispatches plan concurrently and settles every adapter before merging.
// Only caller cancellation and an all-failed outcome are errors.
func (a *Aggregator) Run(ctx context.Context, plan []adapters.Adapter) (*models.AggregationResult, error) {
	if len(plan) == 0 {
		return nil, ErrNoSources
	}

	requestID := uuid.NewString()
	started := time.Now()

	results := make([][]models.TariffQuote, len(plan))
	tasks := make([]task, len(plan))
	for i, ad := range plan {
		tasks[i] = task{
			source: ad.Source(),
			class:  ad.Class(),
			budget: a.budget(ad.Class(), ad.Timeout()),
			run: func(ctx context.Context) error {
				quotes, err := ad.Invoke(ctx)
				if err != nil {
					return err
				}
				results[i] = quotes
				return nil
			},
		}
	}

	errs := a.settle(ctx, requestID, tasks)
	if err := ctx.Err(); err != nil {
		a.metrics.IncAggregation("canceled")
		slog.Info("comparison canceled", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, err
	}

	var merged []models.TariffQuote
	failures := make(map[string]models.FailureReason)
	successes := 0
	for i, err := range errs {
		if err != nil {
			failures[tasks[i].source] = transport.Reason(err)
			continue
		}
		successes++
		merged = append(merged, results[i]...)
	}

	if successes == 0 {
		a.metrics.IncAggregation("failed")
		a.logFailures(requestID, failures)
		return nil, &AllProvidersFailedError{RequestID: requestID, Failures: failures}
	}

	quotes := Merge(merged)
	result := &models.AggregationResult{
		RequestID:  requestID,
		Quotes:     quotes,
		Failures:   failures,
		Partial:    len(failures) > 0 && len(quotes) > 0,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	outcome := "complete"
	if result.Partial {
		outcome = "partial"
	}
	a.metrics.IncAggregation(outcome)
	a.metrics.AddQuotes(len(quotes))
	a.logFailures(requestID, failures)
	slog.Info("comparison finished",
		slog.String("request_id", requestID),
		slog.Int("sources", len(plan)),
		slog.Int("quotes", len(quotes)),
		slog.Int("failures", len(failures)),
		slog.Duration("duration", result.FinishedAt.Sub(started)),
	)
	return result, nil
}

// Analyze runs the backtest and risk analysis of one upload side by side.
func (a *Aggregator) Analyze(ctx context.Context, upload *models.Upload, days int) (*models.AnalysisResult, error) {
	if days <= 0 {
		days = a.cfg.RiskDays
	}
	backtest := adapters.NewBacktest(a.client, upload)
	risk := adapters.NewRisk(a.client, upload, days)

	requestID := uuid.NewString()
	result := &models.AnalysisResult{RequestID: requestID, Failures: make(map[string]models.FailureReason)}

	tasks := []task{
		{
			source: backtest.Source(),
			class:  backtest.Class(),
			budget: a.budget(backtest.Class(), 0),
			run: func(ctx context.Context) error {
				out, err := backtest.Run(ctx)
				result.Backtest = out
				return err
			},
		},
		{
			source: risk.Source(),
			class:  risk.Class(),
			budget: a.budget(risk.Class(), 0),
			run: func(ctx context.Context) error {
				out, err := risk.Run(ctx)
				result.Risk = out
				return err
			},
		},
	}

	errs := a.settle(ctx, requestID, tasks)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			result.Failures[tasks[i].source] = transport.Reason(err)
		}
	}
	a.logFailures(requestID, result.Failures)

	if len(result.Failures) == len(tasks) {
		a.metrics.IncAggregation("failed")
		return nil, &AllProvidersFailedError{RequestID: requestID, Failures: result.Failures}
	}
	result.Partial = len(result.Failures) > 0
	if result.Partial {
		a.metrics.IncAggregation("partial")
	} else {
		a.metrics.IncAggregation("complete")
	}
	return result, nil
}

type task struct {
	source string
	class  transport.Class
	budget time.Duration
	run    func(context.Context) error
}

func (a *Aggregator) budget(class transport.Class, override time.Duration) time.Duration {
	if a.client != nil {
		return a.client.Budget(class, override)
	}
	if override > 0 {
		return override
	}
	return a.cfg.Timeout
}

// settle runs every task and waits for all of them. The overall deadline is
// the largest single budget; one task's timeout never cancels another.
func (a *Aggregator) settle(ctx context.Context, requestID string, tasks []task) []error {
	var deadline time.Duration
	for _, t := range tasks {
		if t.budget > deadline {
			deadline = t.budget
		}
	}

	ctx = transport.WithRequestID(ctx, requestID)
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	errs := make([]error, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			errs[i] = a.runTask(ctx, requestID, t)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (a *Aggregator) runTask(ctx context.Context, requestID string, t task) error {
	ctx, span := a.tracer.Start(ctx, "source "+t.source, trace.WithAttributes(
		attribute.String("tariffs.request_id", requestID),
		attribute.String("tariffs.source", t.source),
		attribute.String("tariffs.class", string(t.class)),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, t.budget)
	defer cancel()

	start := time.Now()
	retries, err := a.retry.do(callCtx, t.source, t.class, t.run)
	if err != nil && !isClassified(err) && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = transport.ErrTimeout{Err: err}
	}
	a.metrics.ObserveDuration(string(t.class), time.Since(start))
	span.SetAttributes(attribute.Int("tariffs.retries", retries))

	if err != nil {
		outcome := "failure"
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		} else {
			a.metrics.IncFailure(transport.Reason(err).Kind.String())
		}
		a.metrics.IncRequest(string(t.class), outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	a.metrics.IncRequest(string(t.class), "success")
	span.SetStatus(codes.Ok, "")
	return nil
}

// isClassified reports whether err already carries a failure kind.
func isClassified(err error) bool {
	var (
		timeout  transport.ErrTimeout
		rejected transport.ErrUpstreamRejected
		parse    transport.ErrParse
		network  transport.ErrNetwork
	)
	return errors.As(err, &timeout) || errors.As(err, &rejected) || errors.As(err, &parse) || errors.As(err, &network)
}

func (a *Aggregator) logFailures(requestID string, failures map[string]models.FailureReason) {
	sources := make([]string, 0, len(failures))
	for s := range failures {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		reason := failures[s]
		slog.Warn("source failed",
			slog.String("request_id", requestID),
			slog.String("source", s),
			slog.String("reason", reason.Kind.String()),
			slog.Int("status", reason.Status),
			slog.String("detail", reason.Detail),
		)
	}
}

// Merge drops duplicate quotes and orders the rest by annual cost, then
// provider. The remaining keys make the order total so it never depends on
// which source answered first.
func Merge(quotes []models.TariffQuote) []models.TariffQuote {
	seen := make(map[string]struct{}, len(quotes))
	out := make([]models.TariffQuote, 0, len(quotes))
	for _, q := range quotes {
		key := q.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AnnualCost != b.AnnualCost {
			return a.AnnualCost < b.AnnualCost
		}
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if a.TariffName != b.TariffName {
			return a.TariffName < b.TariffName
		}
		if a.SourceKind != b.SourceKind {
			return a.SourceKind < b.SourceKind
		}
		return a.MonthlyCost < b.MonthlyCost
	})
	return out
}

// Summary renders a one-line description of a result for logs and the CLI.
func Summary(r *models.AggregationResult) string {
	if r == nil {
		return "no result"
	}
	if r.Partial {
		return fmt.Sprintf("%d quotes, %d sources failed", len(r.Quotes), len(r.Failures))
	}
	return fmt.Sprintf("%d quotes", len(r.Quotes))
}
