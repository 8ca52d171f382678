package repository

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/models"
)

// encodeBlob serializes a sub-entity into a JSON text column. A nil value is stored as NULL.
func encodeBlob[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// decodeBlob parses a JSON text column back into a sub-entity. The column may hold
// the object itself or a JSON string wrapping it (double-encoded by some writers).
// NULL, empty and "null" decode to nil without error.
func decodeBlob[T any](raw sql.NullString) (*T, error) {
	if !raw.Valid {
		return nil, nil
	}
	data := bytes.TrimSpace([]byte(raw.String))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		return decodeBlob[T](sql.NullString{String: inner, Valid: true})
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// decodeField is decodeBlob with malformed data treated as absent. One bad blob
// must not take down the whole listing, so the failure is logged and dropped.
func decodeField[T any](id, field string, raw sql.NullString) *T {
	v, err := decodeBlob[T](raw)
	if err != nil {
		log.Warn().Err(err).Str("product_id", id).Str("field", field).Msg("malformed persisted data, treating field as absent")
		return nil
	}
	return v
}

// ToRow flattens a product for persistence.
func ToRow(p *models.Product) (*models.ProductRow, error) {
	row := &models.ProductRow{
		ID:                p.ID,
		Name:              p.Name,
		Platform:          string(p.Platform),
		Niche:             string(p.Niche),
		ActualPrice:       p.ActualPrice,
		ActualCommPercent: p.ActualCommPercent,
		AvgCPC:            p.AvgCPC,
		SalesPageScore:    p.SalesPageScore,
		Link:              p.Link,
		CreatedAt:         p.CreatedAt,
		FinalScore:        p.FinalScore,
	}
	if p.MinBidCPC != nil {
		row.MinBidCPC = sql.NullFloat64{Float64: *p.MinBidCPC, Valid: true}
	}
	if p.MaxBidCPC != nil {
		row.MaxBidCPC = sql.NullFloat64{Float64: *p.MaxBidCPC, Valid: true}
	}
	if p.AIVerdict != "" {
		row.AIVerdict = sql.NullString{String: p.AIVerdict, Valid: true}
	}

	var err error
	fa := p.FinancialAnalysis
	if row.FinancialAnalysis, err = encodeBlob(&fa); err != nil {
		return nil, fmt.Errorf("encode financialAnalysis: %w", err)
	}
	if row.MarketInsights, err = encodeBlob(p.MarketInsights); err != nil {
		return nil, fmt.Errorf("encode marketInsights: %w", err)
	}
	if row.AdsAssets, err = encodeBlob(p.AdsAssets); err != nil {
		return nil, fmt.Errorf("encode adsAssets: %w", err)
	}
	if row.Performance, err = encodeBlob(p.Performance); err != nil {
		return nil, fmt.Errorf("encode performance: %w", err)
	}
	if len(p.GroundingURLs) > 0 {
		if row.GroundingURLs, err = encodeBlob(&p.GroundingURLs); err != nil {
			return nil, fmt.Errorf("encode groundingUrls: %w", err)
		}
	}
	return row, nil
}

// FromRow rebuilds the structured product from its flat projection.
func FromRow(row *models.ProductRow) models.Product {
	p := models.Product{
		ID:                row.ID,
		Name:              row.Name,
		Platform:          models.Platform(row.Platform),
		Niche:             models.Niche(row.Niche),
		ActualPrice:       row.ActualPrice,
		ActualCommPercent: row.ActualCommPercent,
		AvgCPC:            row.AvgCPC,
		SalesPageScore:    row.SalesPageScore,
		Link:              row.Link,
		CreatedAt:         row.CreatedAt,
		FinalScore:        row.FinalScore,
		AIVerdict:         row.AIVerdict.String,
	}
	if row.MinBidCPC.Valid {
		v := row.MinBidCPC.Float64
		p.MinBidCPC = &v
	}
	if row.MaxBidCPC.Valid {
		v := row.MaxBidCPC.Float64
		p.MaxBidCPC = &v
	}
	if fa := decodeField[models.FinancialAnalysis](row.ID, "financial_analysis", row.FinancialAnalysis); fa != nil {
		p.FinancialAnalysis = *fa
	}
	p.MarketInsights = decodeField[models.MarketInsights](row.ID, "market_insights", row.MarketInsights)
	p.AdsAssets = decodeField[models.AdsAssets](row.ID, "ads_assets", row.AdsAssets)
	p.Performance = decodeField[models.Performance](row.ID, "performance", row.Performance)
	if sources := decodeField[[]models.GroundingSource](row.ID, "grounding_urls", row.GroundingURLs); sources != nil {
		p.GroundingURLs = *sources
	}
	return p
}
