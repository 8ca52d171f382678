package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

// ValidationError lists the fields that made a record submission invalid.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return utils.ErrValidation
}

// CreateInput is the user-supplied part of a product record.
type CreateInput struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name"`
	Platform          string   `json:"platform"`
	Niche             string   `json:"niche"`
	Link              string   `json:"link"`
	ActualPrice       float64  `json:"actualPrice"`
	ActualCommPercent float64  `json:"actualCommPercent"`
	AvgCPC            float64  `json:"avgCPC"`
	MinBidCPC         *float64 `json:"minBidCPC,omitempty"`
	MaxBidCPC         *float64 `json:"maxBidCPC,omitempty"`
}

// Validate trims text fields in place and reports every invalid field at once.
func (in *CreateInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Link = strings.TrimSpace(in.Link)
	in.Platform = strings.TrimSpace(in.Platform)
	in.Niche = strings.TrimSpace(in.Niche)

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if in.Link == "" {
		fields["link"] = "is required"
	}
	if !models.Platform(in.Platform).Valid() {
		fields["platform"] = fmt.Sprintf("unknown platform %q", in.Platform)
	}
	if !models.Niche(in.Niche).Valid() {
		fields["niche"] = fmt.Sprintf("unknown niche %q", in.Niche)
	}
	if !finite(in.ActualPrice) || in.ActualPrice <= 0 {
		fields["actualPrice"] = "must be greater than zero"
	}
	if !finite(in.ActualCommPercent) || in.ActualCommPercent < 0 || in.ActualCommPercent > 100 {
		fields["actualCommPercent"] = "must be between 0 and 100"
	}
	if !finite(in.AvgCPC) || in.AvgCPC < 0 {
		fields["avgCPC"] = "must not be negative"
	}
	if in.MinBidCPC != nil && (!finite(*in.MinBidCPC) || *in.MinBidCPC < 0) {
		fields["minBidCPC"] = "must not be negative"
	}
	if in.MaxBidCPC != nil && (!finite(*in.MaxBidCPC) || *in.MaxBidCPC < 0) {
		fields["maxBidCPC"] = "must not be negative"
	}
	if in.MinBidCPC != nil && in.MaxBidCPC != nil && *in.MinBidCPC > *in.MaxBidCPC {
		fields["maxBidCPC"] = "must not be lower than minBidCPC"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
