package models

import "encoding/json"

// ReferenceTariff is one entry of the engine's static tariff catalogue.
type ReferenceTariff struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Provider         string   `json:"provider"`
	Type             string   `json:"type"`
	BasePrice        float64  `json:"base_price"`
	KwhPrice         float64  `json:"kwh_price"`
	IsDynamic        bool     `json:"is_dynamic"`
	Features         []string `json:"features"`
	ContractDuration int      `json:"contract_duration"`
	GreenEnergy      bool     `json:"green_energy"`
	Description      string   `json:"description,omitempty"`
}

type HourlyPrice struct {
	Hour  int     `json:"hour"`
	Price float64 `json:"price"`
}

// MarketPrices is the current spot price plus a day-ahead curve.
type MarketPrices struct {
	CurrentPrice float64       `json:"current_price"`
	Currency     string        `json:"currency"`
	Timestamp    string        `json:"timestamp"`
	Forecast     []HourlyPrice `json:"forecast"`
}

// UsageTips are free-text saving suggestions.
type UsageTips struct {
	Tips             []string `json:"tips"`
	SavingsPotential string   `json:"savings_potential"`
}

// PriceChart and PriceBreakdown are passed through to the presentation layer
// untouched.
type (
	PriceChart     json.RawMessage
	PriceBreakdown json.RawMessage
)

// ForecastHour is one hourly point of a day's price forecast.
type ForecastHour struct {
	Hour     int     `json:"hour"`
	Price    float64 `json:"price"`
	DateTime string  `json:"datetime"`
}

// ForecastDay summarizes one forecast day.
type ForecastDay struct {
	Date         string         `json:"date"`
	DayName      string         `json:"day_name"`
	HourlyPrices []ForecastHour `json:"hourly_prices"`
	AvgPrice     float64        `json:"avg_price"`
	MinPrice     float64        `json:"min_price"`
	MaxPrice     float64        `json:"max_price"`
}

// PriceForecast is the engine's week-ahead retail price forecast.
type PriceForecast struct {
	Days        []ForecastDay `json:"forecast"`
	GeneratedAt string        `json:"generated_at"`
	Currency    string        `json:"currency"`
}
