package models

import "database/sql"

// ProductRow is the flat projection persisted by the remote store.
// Sub-entities are JSON text columns; see repository codec.
type ProductRow struct {
	ID                string          `db:"id"`
	Name              string          `db:"name"`
	Platform          string          `db:"platform"`
	Niche             string          `db:"niche"`
	ActualPrice       float64         `db:"actual_price"`
	ActualCommPercent float64         `db:"actual_comm_percent"`
	AvgCPC            float64         `db:"avg_cpc"`
	MinBidCPC         sql.NullFloat64 `db:"min_bid_cpc"`
	MaxBidCPC         sql.NullFloat64 `db:"max_bid_cpc"`
	SalesPageScore    float64         `db:"sales_page_score"`
	Link              string          `db:"link"`
	CreatedAt         int64           `db:"created_at"`
	FinancialAnalysis sql.NullString  `db:"financial_analysis"`
	MarketInsights    sql.NullString  `db:"market_insights"`
	AdsAssets         sql.NullString  `db:"ads_assets"`
	Performance       sql.NullString  `db:"performance"`
	AIVerdict         sql.NullString  `db:"ai_verdict"`
	FinalScore        float64         `db:"final_score"`
	GroundingURLs     sql.NullString  `db:"grounding_urls"`
}
