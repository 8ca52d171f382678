package service

import (
	"time"

	"github.com/GTDGit/garimpo_api/internal/models"
)

// PerformanceUpdate is a partial update of campaign figures. Nil fields are left untouched.
type PerformanceUpdate struct {
	TotalSpent   *float64 `json:"totalSpent,omitempty"`
	ActualClicks *float64 `json:"actualClicks,omitempty"`
	Conversions  *float64 `json:"conversions,omitempty"`
	SalesValue   *float64 `json:"salesValue,omitempty"`

	AccountName  *string             `json:"accountName,omitempty"`
	CampaignName *string             `json:"campaignName,omitempty"`
	LaunchDate   *string             `json:"launchDate,omitempty"`
	AdStatus     *models.AdStatus    `json:"adStatus,omitempty"`
	PixelStatus  *models.PixelStatus `json:"pixelStatus,omitempty"`
	BidStrategy  *string             `json:"bidStrategy,omitempty"`
}

// Empty reports whether the update carries no field at all.
func (u PerformanceUpdate) Empty() bool {
	return u == PerformanceUpdate{}
}

// Validate rejects negative figures and unknown statuses.
func (u PerformanceUpdate) Validate() error {
	fields := map[string]string{}
	check := func(name string, v *float64) {
		if v != nil && (!finite(*v) || *v < 0) {
			fields[name] = "must not be negative"
		}
	}
	check("totalSpent", u.TotalSpent)
	check("actualClicks", u.ActualClicks)
	check("conversions", u.Conversions)
	check("salesValue", u.SalesValue)

	if u.AdStatus != nil {
		switch *u.AdStatus {
		case models.AdStatusActive, models.AdStatusPaused, models.AdStatusRejected:
		default:
			fields["adStatus"] = "unknown ad status"
		}
	}
	if u.PixelStatus != nil {
		switch *u.PixelStatus {
		case models.PixelOK, models.PixelError, models.PixelMissing:
		default:
			fields["pixelStatus"] = "unknown pixel status"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ApplyPerformanceUpdate merges u into the product's performance, starting from a
// zeroed value when none exists, and stamps LastUpdate with now. p is not modified.
func ApplyPerformanceUpdate(p models.Product, u PerformanceUpdate, now time.Time) models.Product {
	out := p.Clone()

	perf := models.Performance{}
	if out.Performance != nil {
		perf = *out.Performance
	}

	if u.TotalSpent != nil {
		perf.TotalSpent = *u.TotalSpent
	}
	if u.ActualClicks != nil {
		perf.ActualClicks = *u.ActualClicks
	}
	if u.Conversions != nil {
		perf.Conversions = *u.Conversions
	}
	if u.SalesValue != nil {
		perf.SalesValue = *u.SalesValue
	}
	if u.AccountName != nil {
		perf.AccountName = *u.AccountName
	}
	if u.CampaignName != nil {
		perf.CampaignName = *u.CampaignName
	}
	if u.LaunchDate != nil {
		perf.LaunchDate = *u.LaunchDate
	}
	if u.AdStatus != nil {
		perf.AdStatus = *u.AdStatus
	}
	if u.PixelStatus != nil {
		perf.PixelStatus = *u.PixelStatus
	}
	if u.BidStrategy != nil {
		perf.BidStrategy = *u.BidStrategy
	}

	perf.LastUpdate = now.UnixMilli()
	out.Performance = &perf
	return out
}
