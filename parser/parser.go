// Package parser validates and normalizes tariff data before it reaches callers.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dynergy/tariff-compare/models"
)

var zipPattern = regexp.MustCompile(`^[0-9]{5}$`)

var (
	// annualTolerance is the relative slack allowed between annual and 12x monthly
	// cost for estimated quotes.
	annualTolerance = decimal.NewFromFloat(0.01)
	// annualToleranceFloor covers cent rounding of the monthly figure (12 x 0.01).
	annualToleranceFloor = decimal.NewFromFloat(0.12)
	twelve               = decimal.NewFromInt(12)
)

// ValidateZipCode accepts five-digit German postal codes.
func ValidateZipCode(zip string) error {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return fmt.Errorf("zip code is empty")
	}
	if !zipPattern.MatchString(zip) {
		return fmt.Errorf("zip code %q must be five digits", zip)
	}
	return nil
}

// NormalizeProviderID lower-cases and trims a provider name ("EnBW " -> "enbw").
func NormalizeProviderID(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	provider = strings.TrimSuffix(provider, " energy")
	return strings.ReplaceAll(provider, " ", "-")
}

// NormalizeTariffType maps the engine's free-form type labels onto TariffType.
func NormalizeTariffType(label string) (models.TariffType, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "fixed", "fix", "festpreis":
		return models.TariffFixed, nil
	case "dynamic", "dynamisch":
		return models.TariffDynamic, nil
	case "spot", "spot-indexed", "spot_indexed", "boersenpreis", "börsenpreis":
		return models.TariffSpotIndexed, nil
	default:
		return "", fmt.Errorf("unknown tariff type %q", label)
	}
}

// RoundCost rounds a euro amount to cents.
func RoundCost(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ValidateQuote ensures a normalized quote honours the comparison invariants.
func ValidateQuote(q *models.TariffQuote) error {
	if q == nil {
		return fmt.Errorf("quote is nil")
	}
	if strings.TrimSpace(q.ProviderID) == "" {
		return fmt.Errorf("quote missing provider")
	}
	if strings.TrimSpace(q.TariffName) == "" {
		return fmt.Errorf("quote missing tariff name for %s", q.ProviderID)
	}
	if q.MonthlyCost < 0 || q.AnnualCost < 0 {
		return fmt.Errorf("negative cost for %s/%s", q.ProviderID, q.TariffName)
	}
	if q.SourceKind.Estimated() && !AnnualConsistent(q.MonthlyCost, q.AnnualCost) {
		return fmt.Errorf("annual cost %.2f inconsistent with monthly cost %.2f for %s/%s",
			q.AnnualCost, q.MonthlyCost, q.ProviderID, q.TariffName)
	}
	return nil
}

// AnnualConsistent reports whether annual is within tolerance of 12 x monthly.
func AnnualConsistent(monthly, annual float64) bool {
	a := decimal.NewFromFloat(annual)
	diff := decimal.NewFromFloat(monthly).Mul(twelve).Sub(a).Abs()
	limit := a.Mul(annualTolerance)
	if limit.LessThan(annualToleranceFloor) {
		limit = annualToleranceFloor
	}
	return diff.LessThanOrEqual(limit)
}
