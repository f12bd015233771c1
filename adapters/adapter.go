// Package adapters turns each engine endpoint into a source of normalized quotes.
package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/parser"
	"github.com/dynergy/tariff-compare/transport"
)

// Adapter is one data source the aggregator can dispatch.
type Adapter interface {
	// Source is the key under which a failure is reported.
	Source() string
	Class() transport.Class
	// Timeout overrides the class budget when positive.
	Timeout() time.Duration
	Invoke(ctx context.Context) ([]models.TariffQuote, error)
}

// engineQuote is the engine's tariff record across all endpoints.
type engineQuote struct {
	TariffName  string   `json:"tariff_name"`
	Provider    string   `json:"provider"`
	TariffType  string   `json:"tariff_type"`
	MonthlyCost *float64 `json:"monthly_cost"`
	AnnualCost  *float64 `json:"annual_cost"`
	AvgKwhPrice float64  `json:"avg_kwh_price"`
}

// normalize reshapes an engine record. provider overrides the record's own
// provider when non-empty; defaultType is used when the record carries none.
func (r engineQuote) normalize(kind models.SourceKind, provider string, defaultType models.TariffType) (models.TariffQuote, error) {
	if provider == "" {
		provider = parser.NormalizeProviderID(r.Provider)
	}
	if provider == "" {
		return models.TariffQuote{}, transport.Parsef("tariff %q has no provider", r.TariffName)
	}

	tariffType := defaultType
	if strings.TrimSpace(r.TariffType) != "" {
		t, err := parser.NormalizeTariffType(r.TariffType)
		if err != nil {
			return models.TariffQuote{}, transport.ErrParse{Err: err}
		}
		tariffType = t
	}
	if tariffType == "" {
		return models.TariffQuote{}, transport.Parsef("tariff %q has no type", r.TariffName)
	}

	var monthly, annual float64
	switch {
	case r.MonthlyCost != nil && r.AnnualCost != nil:
		monthly, annual = *r.MonthlyCost, *r.AnnualCost
	case r.MonthlyCost != nil:
		monthly, annual = *r.MonthlyCost, *r.MonthlyCost*12
	case r.AnnualCost != nil:
		monthly, annual = *r.AnnualCost/12, *r.AnnualCost
	default:
		return models.TariffQuote{}, transport.Parsef("tariff %q has no cost", r.TariffName)
	}

	q := models.TariffQuote{
		ProviderID:  provider,
		TariffName:  strings.TrimSpace(r.TariffName),
		TariffType:  tariffType,
		MonthlyCost: parser.RoundCost(monthly),
		AnnualCost:  parser.RoundCost(annual),
		SourceKind:  kind,
		AvgKwhPrice: r.AvgKwhPrice,
	}
	if err := parser.ValidateQuote(&q); err != nil {
		return models.TariffQuote{}, transport.ErrParse{Err: err}
	}
	return q, nil
}

func normalizeAll(records []engineQuote, kind models.SourceKind, provider string, defaultType models.TariffType) ([]models.TariffQuote, error) {
	if len(records) == 0 {
		return nil, transport.Parsef("engine returned no tariffs")
	}
	quotes := make([]models.TariffQuote, 0, len(records))
	for _, r := range records {
		q, err := r.normalize(kind, provider, defaultType)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// validateUpload rejects a missing, empty or non-CSV file before any request.
func validateUpload(upload *models.Upload) error {
	if upload == nil {
		return transport.Parsef("no consumption file uploaded")
	}
	if len(strings.TrimSpace(string(upload.Content))) == 0 {
		return transport.Parsef("consumption file %q is empty", upload.Filename)
	}
	if !strings.HasSuffix(strings.ToLower(upload.Filename), ".csv") {
		return transport.Parsef("file %q must be a CSV", upload.Filename)
	}
	return nil
}
