// Package finance turns price, commission and cost-per-click inputs into a
// profitability verdict. Every function here is pure.
package finance

import (
	"math"

	"github.com/GTDGit/garimpo_api/internal/models"
)

// DefaultClicksPerSale is the reference conversion rate (1 sale per 30 clicks)
// assumed when no live data exists. It is an approximation, not a measured rate.
const DefaultClicksPerSale = 30

// Default viability thresholds, in ROI percent.
const (
	DefaultProfitableROI = 50.0
	DefaultCautionROI    = 20.0
)

// Thresholds classifies ROI: >= Profitable is profitable, >= Caution is caution, else loss.
type Thresholds struct {
	Profitable float64
	Caution    float64
}

// DefaultThresholds returns the 50/20 pair.
func DefaultThresholds() Thresholds {
	return Thresholds{Profitable: DefaultProfitableROI, Caution: DefaultCautionROI}
}

// Classify maps an ROI percent to a viability status.
func (t Thresholds) Classify(roiPercent float64) models.ViabilityStatus {
	switch {
	case roiPercent >= t.Profitable:
		return models.ViabilityProfitable
	case roiPercent >= t.Caution:
		return models.ViabilityCaution
	default:
		return models.ViabilityLoss
	}
}

// Model computes financial analyses with a fixed configuration.
type Model struct {
	Thresholds    Thresholds
	ClicksPerSale float64
}

// NewModel builds a Model. Non-positive clicksPerSale falls back to DefaultClicksPerSale.
func NewModel(t Thresholds, clicksPerSale float64) Model {
	if clicksPerSale <= 0 {
		clicksPerSale = DefaultClicksPerSale
	}
	return Model{Thresholds: t, ClicksPerSale: clicksPerSale}
}

// Compute runs the financial model with default thresholds and clicks per sale.
func Compute(listPrice, commissionPercent, costPerClick float64) models.FinancialAnalysis {
	return NewModel(DefaultThresholds(), DefaultClicksPerSale).Compute(listPrice, commissionPercent, costPerClick)
}

// Compute derives the analysis for one set of pricing inputs.
func (m Model) Compute(listPrice, commissionPercent, costPerClick float64) models.FinancialAnalysis {
	clicks := m.ClicksPerSale
	if clicks <= 0 {
		clicks = DefaultClicksPerSale
	}

	commissionCash := listPrice * commissionPercent / 100
	totalAdsCost := costPerClick * clicks
	profit := commissionCash - totalAdsCost

	roi := 0.0
	if totalAdsCost > 0 {
		roi = (profit / totalAdsCost) * 100
	}

	// CPC of zero is treated as 1 so break-even stays finite.
	divisor := costPerClick
	if divisor == 0 {
		divisor = 1
	}

	return models.FinancialAnalysis{
		ProfitPerSale:       profit,
		ROIPercent:          roi,
		BreakEvenClicks:     math.Floor(commissionCash / divisor),
		MaxCPCRecommended:   commissionCash / clicks,
		ViabilityStatus:     m.Thresholds.Classify(roi),
		TotalCommissionCash: commissionCash,
		TotalAdsCost:        totalAdsCost,
	}
}

// RealizedROI is the ROI from recorded spend and conversions. Zero spend yields 0.
func RealizedROI(perf *models.Performance, commissionCash float64) float64 {
	if perf == nil || perf.TotalSpent <= 0 {
		return 0
	}
	return (RealizedProfit(perf, commissionCash) / perf.TotalSpent) * 100
}

// RealizedProfit is conversions * commissionCash - totalSpent.
func RealizedProfit(perf *models.Performance, commissionCash float64) float64 {
	if perf == nil {
		return 0
	}
	return perf.Conversions*commissionCash - perf.TotalSpent
}

// LatestROI returns the realized ROI for live products and the estimated ROI otherwise.
func LatestROI(p *models.Product) float64 {
	if p.IsLive() {
		return RealizedROI(p.Performance, p.FinancialAnalysis.TotalCommissionCash)
	}
	return p.FinancialAnalysis.ROIPercent
}
