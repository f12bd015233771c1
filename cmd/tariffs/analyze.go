package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dynergy/tariff-compare/models"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		file string
		days int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Backtest a consumption CSV against historic prices and report its risk exposure",
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readUpload(file)
			if err != nil {
				return err
			}
			result, err := a.aggregator.Analyze(cmd.Context(), upload, days)
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), result)
			printFailures(cmd.ErrOrStderr(), result.Failures)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "csv", "", "Consumption CSV to analyse")
	cmd.Flags().IntVar(&days, "days", 0, "Trailing days for the risk analysis (0 uses the configured default)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func printAnalysis(w io.Writer, result *models.AnalysisResult) {
	fmt.Fprintln(w, "\n"+separator())
	fmt.Fprintf(w, "Analysis %s\n", result.RequestID)

	if result.Backtest != nil {
		fmt.Fprintln(w, "Backtest")
		names := make([]string, 0, len(result.Backtest.Metrics))
		for name := range result.Backtest.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-24s %.4f\n", name, result.Backtest.Metrics[name])
		}
	}

	if result.Risk != nil {
		r := result.Risk.HistoricRisk
		fmt.Fprintln(w, "Risk")
		fmt.Fprintf(w, "  Market avg price:       %.4f\n", r.MarketAvgPrice)
		fmt.Fprintf(w, "  Your weighted price:    %.4f\n", r.UserWeightedPrice)
		fmt.Fprintf(w, "  Differential:           %.2f%%\n", r.PriceDifferentialPct)
		fmt.Fprintf(w, "  Volatility:             %.4f\n", r.PriceVolatility)
		fmt.Fprintf(w, "  Exposure:               %s\n", r.RiskExposure)
	}
	fmt.Fprintln(w, separator())
}
