package models

// ViabilityStatus is the three-way profitability verdict.
type ViabilityStatus string

const (
	ViabilityProfitable ViabilityStatus = "profitable"
	ViabilityCaution    ViabilityStatus = "caution"
	ViabilityLoss       ViabilityStatus = "loss"
)

// FinancialAnalysis is derived from price, commission and CPC. It is never edited directly.
type FinancialAnalysis struct {
	ProfitPerSale       float64         `json:"profitPerSale"`
	ROIPercent          float64         `json:"roiPercent"`
	BreakEvenClicks     float64         `json:"breakEvenClicks"`
	MaxCPCRecommended   float64         `json:"maxCpcRecommended"`
	ViabilityStatus     ViabilityStatus `json:"viabilityStatus"`
	TotalCommissionCash float64         `json:"totalCommissionCash"`
	TotalAdsCost        float64         `json:"totalAdsCost"`
}

// TrendStatus describes search demand direction.
type TrendStatus string

const (
	TrendRising    TrendStatus = "rising"
	TrendStable    TrendStatus = "stable"
	TrendDeclining TrendStatus = "declining"
)

// CompetitionLevel describes how contested the ad auction is.
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

// MarketInsights is populated only by enrichment.
type MarketInsights struct {
	SearchVolume     string           `json:"searchVolume,omitempty"`
	TrendStatus      TrendStatus      `json:"trendStatus"`
	EstimatedCPC     float64          `json:"estimatedCPC,omitempty"`
	CompetitionLevel CompetitionLevel `json:"competitionLevel"`
}

// AdsAssets holds generated ad copy. Display only.
type AdsAssets struct {
	Keywords     []string `json:"keywords"`
	Titles       []string `json:"titles"`
	Descriptions []string `json:"descriptions"`
}

// GroundingSource is a web page the model consulted during an audit.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}
