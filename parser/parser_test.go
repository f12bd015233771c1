package parser

import (
	"testing"

	"github.com/dynergy/tariff-compare/models"
)

func TestValidateQuote(t *testing.T) {
	tests := []struct {
		name    string
		quote   *models.TariffQuote
		wantErr bool
	}{
		{
			name: "valid calculated quote",
			quote: &models.TariffQuote{
				ProviderID:  "enbw",
				TariffName:  "easy+",
				TariffType:  models.TariffFixed,
				MonthlyCost: 110.00,
				AnnualCost:  1320.00,
				SourceKind:  models.SourceCalculated,
			},
			wantErr: false,
		},
		{
			name:    "nil quote",
			quote:   nil,
			wantErr: true,
		},
		{
			name: "missing provider",
			quote: &models.TariffQuote{
				TariffName:  "easy+",
				MonthlyCost: 10,
				AnnualCost:  120,
				SourceKind:  models.SourceCalculated,
			},
			wantErr: true,
		},
		{
			name: "missing tariff name",
			quote: &models.TariffQuote{
				ProviderID:  "enbw",
				MonthlyCost: 10,
				AnnualCost:  120,
				SourceKind:  models.SourceCalculated,
			},
			wantErr: true,
		},
		{
			name: "negative monthly cost",
			quote: &models.TariffQuote{
				ProviderID:  "enbw",
				TariffName:  "Basis",
				MonthlyCost: -1,
				AnnualCost:  120,
				SourceKind:  models.SourceCSV,
			},
			wantErr: true,
		},
		{
			name: "estimated annual mismatch",
			quote: &models.TariffQuote{
				ProviderID:  "enbw",
				TariffName:  "Basis",
				MonthlyCost: 100,
				AnnualCost:  1000,
				SourceKind:  models.SourceCSV,
			},
			wantErr: true,
		},
		{
			name: "scraped annual mismatch tolerated",
			quote: &models.TariffQuote{
				ProviderID:  "tado",
				TariffName:  "Tado Dynamic",
				MonthlyCost: 100,
				AnnualCost:  1000,
				SourceKind:  models.SourceScraped,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuote(tt.quote)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuote() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateZipCode(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "70173", wantErr: false},
		{input: " 68167 ", wantErr: false},
		{input: "", wantErr: true},
		{input: "   ", wantErr: true},
		{input: "7017", wantErr: true},
		{input: "701733", wantErr: true},
		{input: "7O173", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateZipCode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateZipCode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeTariffType(t *testing.T) {
	tests := []struct {
		input    string
		expected models.TariffType
		wantErr  bool
	}{
		{input: "fixed", expected: models.TariffFixed},
		{input: " Dynamic ", expected: models.TariffDynamic},
		{input: "spot", expected: models.TariffSpotIndexed},
		{input: "spot-indexed", expected: models.TariffSpotIndexed},
		{input: "Börsenpreis", expected: models.TariffSpotIndexed},
		{input: "hourly", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeTariffType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeTariffType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("NormalizeTariffType(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeProviderID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "EnBW", expected: "enbw"},
		{input: " Tibber ", expected: "tibber"},
		{input: "Tado Energy", expected: "tado"},
		{input: "Stadtwerke Stuttgart", expected: "stadtwerke-stuttgart"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeProviderID(tt.input); got != tt.expected {
				t.Errorf("NormalizeProviderID(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestRoundCost(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{input: 51.774, expected: 51.77},
		{input: 51.775, expected: 51.78},
		{input: 0, expected: 0},
		{input: 1320, expected: 1320},
	}

	for _, tt := range tests {
		if got := RoundCost(tt.input); got != tt.expected {
			t.Errorf("RoundCost(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestAnnualConsistent(t *testing.T) {
	if !AnnualConsistent(110.01, 1320.10) {
		t.Errorf("cent rounding should be tolerated")
	}
	if AnnualConsistent(110, 1400) {
		t.Errorf("6%% drift should not be tolerated")
	}
}
