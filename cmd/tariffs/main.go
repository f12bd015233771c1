package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dynergy/tariff-compare/aggregator"
	"github.com/dynergy/tariff-compare/config"
	"github.com/dynergy/tariff-compare/reference"
	"github.com/dynergy/tariff-compare/telemetry"
	"github.com/dynergy/tariff-compare/transport"
)

const version = "1.0.0"

// app is the state shared by every subcommand once the root has loaded config.
type app struct {
	cfg        *config.Config
	client     *transport.Client
	aggregator *aggregator.Aggregator
	reference  *reference.Fetcher
	metrics    *aggregator.Metrics

	metricsServer *http.Server
	shutdownTrace func(context.Context) error
}

type rootFlags struct {
	configFile   string
	baseURL      string
	token        string
	verbose      bool
	metricsAddr  string
	otlpEndpoint string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "tariffs",
		Short:         "Compare electricity tariffs across calculated and live provider quotes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "Path to a YAML config file")
	pf.StringVar(&flags.baseURL, "base-url", "", "Calculation engine base URL")
	pf.StringVar(&flags.token, "token", "", "Session credential sent as a bearer token")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	pf.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for traces")

	root.AddCommand(newCompareCmd(a), newAnalyzeCmd(a), newReferenceCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	pf := cmd.Flags()
	if pf.Changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if pf.Changed("token") {
		cfg.AuthToken = flags.token
	}
	if pf.Changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	if pf.Changed("metrics-addr") {
		cfg.MetricsAddr = flags.metricsAddr
	}
	if pf.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = flags.otlpEndpoint
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	shutdown, err := telemetry.Init(cmd.Context(), "tariffs", version, cfg.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", slog.Any("error", err))
	} else {
		a.shutdownTrace = shutdown
	}

	session := transport.NewSession(cfg.AuthToken)
	a.client, err = transport.New(cfg, session)
	if err != nil {
		return fmt.Errorf("initialising client: %w", err)
	}
	a.reference, err = reference.New(cfg, session)
	if err != nil {
		return fmt.Errorf("initialising reference fetcher: %w", err)
	}
	a.metrics = aggregator.NewMetrics()
	a.aggregator = aggregator.New(cfg, a.client, a.metrics)

	if cfg.MetricsAddr != "" {
		a.metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}
	return nil
}

func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
	if a.shutdownTrace != nil {
		if err := a.shutdownTrace(shutdownCtx); err != nil {
			slog.Debug("trace shutdown failed", slog.Any("error", err))
		}
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func separator() string {
	return strings.Repeat("-", 50)
}
