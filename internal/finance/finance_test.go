package finance

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/GTDGit/garimpo_api/internal/models"
)

func TestCompute_KnownValues(t *testing.T) {
	fa := Compute(97, 50, 1.5)

	assert.InDelta(t, 48.5, fa.TotalCommissionCash, 1e-9)
	assert.InDelta(t, 45.0, fa.TotalAdsCost, 1e-9)
	assert.InDelta(t, 3.5, fa.ProfitPerSale, 1e-9)
	assert.InDelta(t, 7.7778, fa.ROIPercent, 1e-3)
	assert.Equal(t, 32.0, fa.BreakEvenClicks)
	assert.InDelta(t, 1.6167, fa.MaxCPCRecommended, 1e-3)
	assert.Equal(t, models.ViabilityLoss, fa.ViabilityStatus)
}

func TestCompute_ZeroCPC(t *testing.T) {
	fa := Compute(100, 50, 0)

	assert.Equal(t, 0.0, fa.ROIPercent)
	assert.Equal(t, 0.0, fa.TotalAdsCost)
	assert.Equal(t, 50.0, fa.BreakEvenClicks)
	assert.False(t, math.IsInf(fa.BreakEvenClicks, 0))
	assert.False(t, math.IsNaN(fa.BreakEvenClicks))
	assert.Equal(t, models.ViabilityLoss, fa.ViabilityStatus)
}

func TestCompute_NegativeProfit(t *testing.T) {
	fa := Compute(20, 10, 2)

	assert.InDelta(t, -58.0, fa.ProfitPerSale, 1e-9)
	assert.Less(t, fa.ROIPercent, 0.0)
	assert.Equal(t, models.ViabilityLoss, fa.ViabilityStatus)
}

func TestModel_CustomClicksPerSale(t *testing.T) {
	m := NewModel(DefaultThresholds(), 10)
	fa := m.Compute(100, 50, 1)

	assert.InDelta(t, 10.0, fa.TotalAdsCost, 1e-9)
	assert.InDelta(t, 400.0, fa.ROIPercent, 1e-9)
	assert.InDelta(t, 5.0, fa.MaxCPCRecommended, 1e-9)
	assert.Equal(t, models.ViabilityProfitable, fa.ViabilityStatus)
}

func TestNewModel_FallsBackToDefaultClicks(t *testing.T) {
	m := NewModel(DefaultThresholds(), 0)
	assert.Equal(t, float64(DefaultClicksPerSale), m.ClicksPerSale)
}

func TestMaxCPCRecommended_ZeroesROI(t *testing.T) {
	fa := Compute(97, 50, 1.5)
	atMax := Compute(97, 50, fa.MaxCPCRecommended)
	assert.InDelta(t, 0.0, atMax.ROIPercent, 1e-9)
}

func TestThresholds_Classify(t *testing.T) {
	tests := []struct {
		name string
		th   Thresholds
		roi  float64
		want models.ViabilityStatus
	}{
		{"profitable at boundary", DefaultThresholds(), 50, models.ViabilityProfitable},
		{"caution at boundary", DefaultThresholds(), 20, models.ViabilityCaution},
		{"caution in between", DefaultThresholds(), 35, models.ViabilityCaution},
		{"loss below caution", DefaultThresholds(), 19.99, models.ViabilityLoss},
		{"custom 80/10 caution", Thresholds{Profitable: 80, Caution: 10}, 50, models.ViabilityCaution},
		{"custom 50/10 caution", Thresholds{Profitable: 50, Caution: 10}, 12, models.ViabilityCaution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.th.Classify(tt.roi))
		})
	}
}

func TestRealizedROI(t *testing.T) {
	assert.Equal(t, 0.0, RealizedROI(nil, 48.5))
	assert.Equal(t, 0.0, RealizedROI(&models.Performance{Conversions: 3}, 48.5))

	perf := &models.Performance{TotalSpent: 100, Conversions: 3}
	assert.InDelta(t, 45.5, RealizedROI(perf, 48.5), 1e-9)
	assert.InDelta(t, 45.5, RealizedProfit(perf, 48.5), 1e-9)
}

func TestLatestROI(t *testing.T) {
	p := &models.Product{FinancialAnalysis: Compute(97, 50, 1.5)}
	assert.InDelta(t, p.FinancialAnalysis.ROIPercent, LatestROI(p), 1e-9)

	p.Performance = &models.Performance{TotalSpent: 100, Conversions: 4}
	assert.InDelta(t, 94.0, LatestROI(p), 1e-9)
}

func TestCompute_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs yield identical analysis", prop.ForAll(
		func(price, commission, cpc float64) bool {
			a := Compute(price, commission, cpc)
			b := Compute(price, commission, cpc)
			return a == b
		},
		gen.Float64Range(0, 10000),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
	))

	properties.Property("analysis values are finite", prop.ForAll(
		func(price, commission, cpc float64) bool {
			fa := Compute(price, commission, cpc)
			for _, v := range []float64{fa.ProfitPerSale, fa.ROIPercent, fa.BreakEvenClicks, fa.MaxCPCRecommended} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 10000),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 50),
	))

	properties.TestingRun(t)
}
