package adapters

import (
	"context"
	"strconv"
	"time"

	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/parser"
	"github.com/dynergy/tariff-compare/transport"
)

const (
	SourceBasic = "basic"
	SourceCSV   = "csv"
)

type resultsEnvelope struct {
	Results []engineQuote `json:"results"`
}

// Calculation prices the engine's tariff catalogue from declared household data.
type Calculation struct {
	client   *transport.Client
	profile  models.ConsumptionProfile
	provider string
}

// NewCalculation binds a profile. provider is used for records that name none.
func NewCalculation(client *transport.Client, profile models.ConsumptionProfile, provider string) *Calculation {
	return &Calculation{client: client, profile: profile, provider: parser.NormalizeProviderID(provider)}
}

// Source is SourceBasic.
func (c *Calculation) Source() string { return SourceBasic }
func (c *Calculation) Class() transport.Class { return transport.ClassBasic }
func (c *Calculation) Timeout() time.Duration { return 0 }

// Invoke prices the catalogue for the bound profile.
func (c *Calculation) Invoke(ctx context.Context) ([]models.TariffQuote, error) {
	if c.profile.HouseholdSize < 1 {
		return nil, transport.Parsef("household size must be at least 1")
	}
	if c.profile.AnnualConsumption < 0 {
		return nil, transport.Parsef("annual consumption cannot be negative")
	}

	payload := map[string]any{
		"household_size":     c.profile.HouseholdSize,
		"annual_consumption": c.profile.Annual(),
		"has_smart_meter":    false,
	}
	resp, err := c.client.PostJSON(ctx, c.Class(), "/calculate-basic", payload, 0)
	if err != nil {
		return nil, err
	}

	var envelope resultsEnvelope
	if err := transport.DecodeJSON(resp, &envelope); err != nil {
		return nil, err
	}
	return normalizeFor(envelope.Results, models.SourceCalculated, c.provider)
}

// CSV prices the catalogue against an uploaded consumption series.
type CSV struct {
	client        *transport.Client
	upload        *models.Upload
	householdSize int
	provider      string
}

// NewCSV binds an upload. The engine parses the file; only presence is checked here.
func NewCSV(client *transport.Client, upload *models.Upload, householdSize int, provider string) *CSV {
	return &CSV{client: client, upload: upload, householdSize: householdSize, provider: parser.NormalizeProviderID(provider)}
}

// Source is SourceCSV.
func (c *CSV) Source() string { return SourceCSV }
func (c *CSV) Class() transport.Class { return transport.ClassCSV }
func (c *CSV) Timeout() time.Duration { return 0 }

// Invoke uploads the series and normalizes the priced catalogue.
func (c *CSV) Invoke(ctx context.Context) ([]models.TariffQuote, error) {
	if err := validateUpload(c.upload); err != nil {
		return nil, err
	}
	size := c.householdSize
	if size < 1 {
		size = 2
	}

	resp, err := c.client.PostMultipart(ctx, c.Class(), "/calculate-with-csv",
		map[string]string{"household_size": strconv.Itoa(size)}, *c.upload)
	if err != nil {
		return nil, err
	}

	var envelope resultsEnvelope
	if err := transport.DecodeJSON(resp, &envelope); err != nil {
		return nil, err
	}
	return normalizeFor(envelope.Results, models.SourceCSV, c.provider)
}

// normalizeFor keeps a record's own provider and falls back to the default.
func normalizeFor(records []engineQuote, kind models.SourceKind, fallback string) ([]models.TariffQuote, error) {
	for i := range records {
		if parser.NormalizeProviderID(records[i].Provider) == "" {
			records[i].Provider = fallback
		}
	}
	return normalizeAll(records, kind, "", "")
}
