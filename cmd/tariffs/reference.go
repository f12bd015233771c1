package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newReferenceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Print read-only reference data from the engine as JSON",
	}

	add := func(use, short string, fetch func(context.Context) (any, error)) {
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := fetch(cmd.Context())
				if err != nil {
					return fmt.Errorf("fetch %s: %w", use, err)
				}
				out, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		})
	}

	add("tariffs", "Tariff catalogue", func(ctx context.Context) (any, error) { return a.reference.Tariffs(ctx) })
	add("market-prices", "Current market price and day-ahead curve", func(ctx context.Context) (any, error) { return a.reference.MarketPrices(ctx) })
	add("forecast", "Week-ahead price forecast", func(ctx context.Context) (any, error) { return a.reference.Forecast(ctx) })
	add("usage-tips", "Energy saving tips", func(ctx context.Context) (any, error) { return a.reference.UsageTips(ctx) })
	add("price-chart", "Price chart data", func(ctx context.Context) (any, error) {
		chart, err := a.reference.PriceChart(ctx)
		return json.RawMessage(chart), err
	})
	add("price-breakdown", "Price component breakdown", func(ctx context.Context) (any, error) {
		breakdown, err := a.reference.PriceBreakdown(ctx)
		return json.RawMessage(breakdown), err
	})
	return cmd
}
