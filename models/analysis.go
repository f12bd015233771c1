package models

import "encoding/json"

// Backtest is the engine's replay of a consumption series against historic prices.
type Backtest struct {
	HourlyData json.RawMessage    `json:"hourly_data"`
	DailyData  json.RawMessage    `json:"daily_data"`
	Metrics    map[string]float64 `json:"metrics"`
}

// HistoricRisk summarizes how exposed a load profile was to price swings.
type HistoricRisk struct {
	MarketAvgPrice       float64 `json:"market_avg_price"`
	UserWeightedPrice    float64 `json:"user_weighted_price"`
	PriceDifferentialPct float64 `json:"price_differential_pct"`
	PriceVolatility      float64 `json:"price_volatility"`
	RiskExposure         string  `json:"risk_exposure"`
}

// RiskReport is the engine's risk analysis of an uploaded series.
type RiskReport struct {
	HistoricRisk      HistoricRisk    `json:"historic_risk"`
	CoincidenceFactor json.RawMessage `json:"coincidence_factor,omitempty"`
	LoadProfile       json.RawMessage `json:"load_profile,omitempty"`
}

// AnalysisResult bundles the analysis sources of one call.
type AnalysisResult struct {
	RequestID string                   `json:"request_id"`
	Backtest  *Backtest                `json:"backtest,omitempty"`
	Risk      *RiskReport              `json:"risk,omitempty"`
	Failures  map[string]FailureReason `json:"failures"`
	Partial   bool                     `json:"partial"`
}
