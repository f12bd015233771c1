// Package models defines data structures shared by the comparison pipeline.
package models

import (
	"fmt"
	"time"
)

// DefaultAnnualConsumption is the kWh/year assumed when a profile leaves it unset.
const DefaultAnnualConsumption = 3500.0

// TariffType classifies how a tariff prices energy.
type TariffType string

const (
	TariffFixed       TariffType = "fixed"
	TariffDynamic     TariffType = "dynamic"
	TariffSpotIndexed TariffType = "spot-indexed"
)

// SourceKind records where a quote came from.
type SourceKind string

const (
	SourceScraped    SourceKind = "scraped"
	SourceCalculated SourceKind = "calculated"
	SourceCSV        SourceKind = "csv-derived"
)

// Estimated reports whether quotes of this kind come from a local cost model.
func (k SourceKind) Estimated() bool {
	return k == SourceCalculated || k == SourceCSV
}

// ConsumptionProfile describes the household being priced.
type ConsumptionProfile struct {
	HouseholdSize     int     `json:"household_size"`
	AnnualConsumption float64 `json:"annual_consumption"`
	HasSmartMeter     bool    `json:"has_smart_meter"`
}

// Annual returns the declared consumption or the default estimate.
func (p ConsumptionProfile) Annual() float64 {
	if p.AnnualConsumption > 0 {
		return p.AnnualConsumption
	}
	return DefaultAnnualConsumption
}

// Upload is a consumption time series file handed to the calculation engine.
type Upload struct {
	Filename string
	Content  []byte
}

// ProviderRequest is one scrape target for a single aggregation call.
type ProviderRequest struct {
	ProviderID        string
	ZipCode           string
	AnnualConsumption float64
	TimeoutBudget     time.Duration
	Headless          bool
	DebugMode         bool
}

// TariffQuote is the normalized comparison record.
type TariffQuote struct {
	ProviderID  string     `csv:"provider_id" json:"provider_id"`
	TariffName  string     `csv:"tariff_name" json:"tariff_name"`
	TariffType  TariffType `csv:"tariff_type" json:"tariff_type"`
	MonthlyCost float64    `csv:"monthly_cost" json:"monthly_cost"`
	AnnualCost  float64    `csv:"annual_cost" json:"annual_cost"`
	SourceKind  SourceKind `csv:"source_kind" json:"source_kind"`
	AvgKwhPrice float64    `csv:"avg_kwh_price" json:"avg_kwh_price,omitempty"`
}

// Key identifies a quote for de-duplication.
func (q TariffQuote) Key() string {
	return fmt.Sprintf("%s|%s|%s", q.ProviderID, q.TariffName, q.SourceKind)
}

// FailureKind enumerates why a source produced no quotes.
type FailureKind int

const (
	FailureTimeout FailureKind = iota + 1
	FailureNetwork
	FailureUpstreamRejected
	FailureParse
)

func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureNetwork:
		return "network_error"
	case FailureUpstreamRejected:
		return "upstream_rejected"
	case FailureParse:
		return "parse_error"
	default:
		return "unknown"
	}
}

// FailureReason is attached per source and never merged with others.
type FailureReason struct {
	Kind   FailureKind `json:"kind"`
	Status int         `json:"status,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (r FailureReason) String() string {
	if r.Detail == "" {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

// AggregationResult holds the ordered quotes of one comparison call.
type AggregationResult struct {
	RequestID  string                   `json:"request_id"`
	Quotes     []TariffQuote            `json:"quotes"`
	Failures   map[string]FailureReason `json:"failures"`
	Partial    bool                     `json:"partial"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}
