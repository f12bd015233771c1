package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dynergy/tariff-compare/aggregator"
	"github.com/dynergy/tariff-compare/export"
	"github.com/dynergy/tariff-compare/models"
)

type compareFlags struct {
	basic          bool
	csvFile        string
	providers      []string
	multi          bool
	multiProviders []string
	zipCode        string
	householdSize  int
	consumption    float64
	headless       bool
	debug          bool
	output         string
	format         string
}

func newCompareCmd(a *app) *cobra.Command {
	var flags compareFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Fetch quotes from every selected source and print them cheapest first",
		Example: `  tariffs compare --basic --provider tado --provider tibber --zip 70173
  tariffs compare --csv usage.csv --multi --output out/quotes.csv --format dual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("zip") {
				flags.zipCode = a.cfg.ZipCode
			}
			if !cmd.Flags().Changed("headless") {
				flags.headless = a.cfg.Headless
			}
			if !cmd.Flags().Changed("debug") {
				flags.debug = a.cfg.Debug
			}
			if flags.output == "" {
				flags.output = a.cfg.OutputFile
			}
			if flags.format == "" {
				flags.format = a.cfg.OutputFormat
			}
			return runCompare(cmd, a, flags)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.basic, "basic", false, "Price the tariff catalogue from household data")
	f.StringVar(&flags.csvFile, "csv", "", "Price the catalogue against an uploaded consumption CSV")
	f.StringSliceVar(&flags.providers, "provider", nil, "Scrape a live quote from this provider (repeatable)")
	f.BoolVar(&flags.multi, "multi", false, "Scrape several providers in one engine call")
	f.StringSliceVar(&flags.multiProviders, "multi-provider", nil, "Providers for --multi (default tibber, enbw)")
	f.StringVar(&flags.zipCode, "zip", "", "Five-digit postal code for live quotes")
	f.IntVar(&flags.householdSize, "household-size", 2, "Number of people in the household")
	f.Float64Var(&flags.consumption, "consumption", 0, "Annual consumption in kWh (0 estimates from household size)")
	f.BoolVar(&flags.headless, "headless", true, "Run provider browsers headless")
	f.BoolVar(&flags.debug, "debug", false, "Ask the scrape engine for debug output")
	f.StringVar(&flags.output, "output", "", "Also write the quotes to this file")
	f.StringVar(&flags.format, "format", "", "Output file format: csv, json, or dual")
	return cmd
}

func runCompare(cmd *cobra.Command, a *app, flags compareFlags) error {
	sel := models.Selection{
		Basic:          flags.basic,
		CSV:            flags.csvFile != "",
		Providers:      flags.providers,
		Multi:          flags.multi,
		MultiProviders: flags.multiProviders,
	}
	if sel.Empty() {
		return fmt.Errorf("%w: pass --basic, --csv, --provider or --multi", aggregator.ErrNoSources)
	}

	params := models.CompareParams{
		Profile: models.ConsumptionProfile{
			HouseholdSize:     flags.householdSize,
			AnnualConsumption: flags.consumption,
			HasSmartMeter:     flags.csvFile != "",
		},
		ZipCode:  flags.zipCode,
		Headless: flags.headless,
		Debug:    flags.debug,
	}
	if flags.csvFile != "" {
		upload, err := readUpload(flags.csvFile)
		if err != nil {
			return err
		}
		params.Upload = upload
	}

	result, err := a.aggregator.Compare(cmd.Context(), sel, params)
	if err != nil {
		// Per-source reasons of a total failure are logged, not printed.
		return err
	}

	printQuotes(cmd.OutOrStdout(), result)
	printFailures(cmd.ErrOrStderr(), result.Failures)

	if flags.output != "" {
		if err := export.WriteFile(flags.format, flags.output, result.Quotes); err != nil {
			return fmt.Errorf("export quotes: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Output file:   %s\n", flags.output)
	}
	return nil
}

func readUpload(path string) (*models.Upload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read consumption file: %w", err)
	}
	return &models.Upload{Filename: filepath.Base(path), Content: content}, nil
}

func printQuotes(w io.Writer, result *models.AggregationResult) {
	fmt.Fprintln(w, "\n"+separator())
	fmt.Fprintf(w, "Comparison %s: %s\n", result.RequestID, aggregator.Summary(result))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPROVIDER\tTARIFF\tTYPE\tMONTHLY\tANNUAL\tSOURCE")
	for i, q := range result.Quotes {
		source := string(q.SourceKind)
		if q.SourceKind.Estimated() {
			source += " (estimate)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%.2f\t%s\n",
			i+1, q.ProviderID, q.TariffName, q.TariffType, q.MonthlyCost, q.AnnualCost, source)
	}
	tw.Flush()
	fmt.Fprintf(w, "  Duration:      %v\n", result.FinishedAt.Sub(result.StartedAt))
	fmt.Fprintln(w, separator())
}

// printFailures lists failed sources in a stable order, one line each.
func printFailures(w io.Writer, failures map[string]models.FailureReason) {
	if len(failures) == 0 {
		return
	}
	sources := make([]string, 0, len(failures))
	for s := range failures {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	fmt.Fprintln(w, "Some sources returned no data:")
	for _, s := range sources {
		fmt.Fprintf(w, "  ! %-14s %s\n", s, failures[s])
	}
}
