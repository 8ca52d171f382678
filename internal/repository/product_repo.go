package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/garimpo_api/internal/models"
)

const productColumns = `id, name, platform, niche, actual_price, actual_comm_percent, avg_cpc,
        min_bid_cpc, max_bid_cpc, sales_page_score, link, created_at,
        financial_analysis, market_insights, ads_assets, performance, ai_verdict, final_score,
        grounding_urls`

// ProductRepository handles data access for catalog products in PostgreSQL.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns every product, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	var rows []models.ProductRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(rows))
	for i := range rows {
		products = append(products, FromRow(&rows[i]))
	}
	return products, nil
}

// Upsert inserts a product or replaces every column of the existing row with the same id.
func (r *ProductRepository) Upsert(ctx context.Context, product *models.Product) error {
	row, err := ToRow(product)
	if err != nil {
		return fmt.Errorf("failed to encode product %s: %w", product.ID, err)
	}

	const q = `
        INSERT INTO products (` + productColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            platform = EXCLUDED.platform,
            niche = EXCLUDED.niche,
            actual_price = EXCLUDED.actual_price,
            actual_comm_percent = EXCLUDED.actual_comm_percent,
            avg_cpc = EXCLUDED.avg_cpc,
            min_bid_cpc = EXCLUDED.min_bid_cpc,
            max_bid_cpc = EXCLUDED.max_bid_cpc,
            sales_page_score = EXCLUDED.sales_page_score,
            link = EXCLUDED.link,
            created_at = EXCLUDED.created_at,
            financial_analysis = EXCLUDED.financial_analysis,
            market_insights = EXCLUDED.market_insights,
            ads_assets = EXCLUDED.ads_assets,
            performance = EXCLUDED.performance,
            ai_verdict = EXCLUDED.ai_verdict,
            final_score = EXCLUDED.final_score,
            grounding_urls = EXCLUDED.grounding_urls`

	_, err = r.db.ExecContext(ctx, q,
		row.ID,
		row.Name,
		row.Platform,
		row.Niche,
		row.ActualPrice,
		row.ActualCommPercent,
		row.AvgCPC,
		row.MinBidCPC,
		row.MaxBidCPC,
		row.SalesPageScore,
		row.Link,
		row.CreatedAt,
		row.FinancialAnalysis,
		row.MarketInsights,
		row.AdsAssets,
		row.Performance,
		row.AIVerdict,
		row.FinalScore,
		row.GroundingURLs,
	)
	return err
}

// Delete removes a product by id. Deleting an unknown id is not an error.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM products WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Ping checks that the database is reachable.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
