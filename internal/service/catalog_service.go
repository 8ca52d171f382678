package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/enrichment"
	"github.com/GTDGit/garimpo_api/internal/finance"
	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/sse"
	"github.com/GTDGit/garimpo_api/internal/store"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

// Enricher is the enrichment gateway as seen by the catalog.
type Enricher interface {
	Enabled() bool
	Enrich(ctx context.Context, req enrichment.Request) *enrichment.Result
}

// Stats is the aggregate view over a set of products.
type Stats struct {
	Count                        int     `json:"count"`
	TotalPotentialCommissionCash float64 `json:"totalPotentialCommissionCash"`
	AverageROIPercent            float64 `json:"averageRoiPercent"`
}

// CatalogService owns the in-memory product collection and orchestrates the
// financial model, enrichment and persistence.
type CatalogService struct {
	store    store.Store
	enricher Enricher
	notifier sse.CatalogNotifier
	model    finance.Model
	now      func() time.Time
	newID    func() string

	mu       sync.RWMutex
	products []models.Product

	// writes is held shared by each store write plus its in-memory apply, and
	// exclusively by Load, so a reload never drops a write that finished meanwhile.
	writes sync.RWMutex

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// NewCatalogService constructs a CatalogService. enricher may be nil.
func NewCatalogService(st store.Store, enricher Enricher, model finance.Model) *CatalogService {
	return &CatalogService{
		store:    st,
		enricher: enricher,
		notifier: sse.NopNotifier{},
		model:    model,
		now:      time.Now,
		newID:    uuid.NewString,
		products: []models.Product{},
		inflight: make(map[string]struct{}),
	}
}

// SetNotifier wires a change-event notifier.
func (s *CatalogService) SetNotifier(n sse.CatalogNotifier) {
	if n == nil {
		n = sse.NopNotifier{}
	}
	s.notifier = n
}

// IsFallback reports whether err is a remote failure whose data was kept in the
// local cache. Such errors are warnings, not failures.
func IsFallback(err error) bool {
	return errors.Is(err, utils.ErrStoreUnavailable) && !errors.Is(err, utils.ErrLocalCache)
}

// Load replaces the in-memory collection with the store's contents. On a hard
// failure the last known collection is kept.
func (s *CatalogService) Load(ctx context.Context) error {
	s.writes.Lock()
	defer s.writes.Unlock()

	products, err := s.store.List(ctx)
	if err != nil && (!IsFallback(err) || products == nil) {
		log.Error().Err(err).Msg("Failed to load catalog, keeping last known state")
		return err
	}

	for i := range products {
		if products[i].FinancialAnalysis.ViabilityStatus == "" {
			p := &products[i]
			p.FinancialAnalysis = s.model.Compute(p.ActualPrice, p.ActualCommPercent, p.AvgCPC)
		}
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()

	s.notifier.NotifyCatalogLoaded(len(products), err != nil)
	if err != nil {
		log.Warn().Err(err).Int("count", len(products)).Msg("Catalog loaded from local fallback")
		return err
	}
	log.Info().Int("count", len(products)).Msg("Catalog loaded")
	return nil
}

// List returns a copy of the in-memory collection, newest first.
func (s *CatalogService) List() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, len(s.products))
	for i, p := range s.products {
		out[i] = p.Clone()
	}
	return out
}

// Get returns one product by id.
func (s *CatalogService) Get(id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.indexOf(id); idx >= 0 {
		p := s.products[idx].Clone()
		return &p, nil
	}
	return nil, utils.ErrProductNotFound
}

// Submit validates the input, optionally enriches it and creates the record.
// The model is only called for valid input.
func (s *CatalogService) Submit(ctx context.Context, in CreateInput, enrich bool) (*models.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var res *enrichment.Result
	if enrich {
		res = s.Preview(ctx, enrichment.Request{ProductName: in.Name, SalesURL: in.Link, Niche: in.Niche})
		if res == nil {
			log.Warn().Str("product", in.Name).Msg("Enrichment unavailable, using manual defaults")
		}
	}
	return s.CreateRecord(ctx, in, res)
}

// CreateRecord computes the financial analysis, merges enrichment and persists the
// record. Re-submitting a known id updates it in place, keeping its id, creation
// time and performance. A fallback store error is returned together with the record.
func (s *CatalogService) CreateRecord(ctx context.Context, in CreateInput, res *enrichment.Result) (*models.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = s.newID()
	}
	release, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	analysis := s.model.Compute(in.ActualPrice, in.ActualCommPercent, in.AvgCPC)

	p := models.Product{
		ID:             id,
		CreatedAt:      s.now().UnixMilli(),
		SalesPageScore: models.DefaultSalesPageScore,
		AIVerdict:      models.ManualAuditVerdict,
	}
	if existing, err := s.Get(id); err == nil {
		p = existing.Clone()
	}

	p.Name = in.Name
	p.Platform = models.Platform(in.Platform)
	p.Niche = models.Niche(in.Niche)
	p.Link = in.Link
	p.ActualPrice = in.ActualPrice
	p.ActualCommPercent = in.ActualCommPercent
	p.AvgCPC = in.AvgCPC
	p.MinBidCPC = cloneFloat(in.MinBidCPC)
	p.MaxBidCPC = cloneFloat(in.MaxBidCPC)
	p.FinancialAnalysis = analysis
	p.FinalScore = analysis.ROIPercent
	mergeEnrichment(&p, res)

	saved, storeErr := s.persist(ctx, p)
	if saved == nil {
		return nil, storeErr
	}
	log.Info().
		Str("product_id", p.ID).
		Str("name", p.Name).
		Float64("roi", p.FinancialAnalysis.ROIPercent).
		Str("viability", string(p.FinancialAnalysis.ViabilityStatus)).
		Msg("Product saved")

	return saved, storeErr
}

// DeleteRecord removes the record. Confirmation is the caller's job; unknown ids are not an error.
func (s *CatalogService) DeleteRecord(ctx context.Context, id string) error {
	release, err := s.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	s.writes.RLock()
	storeErr := s.store.Delete(ctx, id)
	if storeErr != nil && !IsFallback(storeErr) {
		s.writes.RUnlock()
		log.Error().Err(storeErr).Str("product_id", id).Msg("Failed to delete product")
		return storeErr
	}

	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.products = append(s.products[:idx], s.products[idx+1:]...)
	}
	s.mu.Unlock()
	s.writes.RUnlock()

	s.notifier.NotifyProductDeleted(id, storeErr != nil)
	log.Info().Str("product_id", id).Msg("Product deleted")
	return storeErr
}

// Preview runs enrichment without touching the catalog. It returns nil when the
// gateway is disabled or fails.
func (s *CatalogService) Preview(ctx context.Context, req enrichment.Request) *enrichment.Result {
	if s.enricher == nil || !s.enricher.Enabled() {
		return nil
	}
	return s.enricher.Enrich(ctx, req)
}

// EnrichmentEnabled reports whether an enrichment gateway is configured.
func (s *CatalogService) EnrichmentEnabled() bool {
	return s.enricher != nil && s.enricher.Enabled()
}

// Enrich re-runs enrichment for an existing record and persists the result.
func (s *CatalogService) Enrich(ctx context.Context, id string) (*models.Product, error) {
	if !s.EnrichmentEnabled() {
		return nil, utils.ErrEnrichmentDisabled
	}

	release, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	res := s.enricher.Enrich(ctx, enrichment.Request{ProductName: p.Name, SalesURL: p.Link, Niche: string(p.Niche)})
	if res == nil {
		return nil, utils.ErrEnrichmentFailed
	}
	mergeEnrichment(p, res)

	return s.persist(ctx, *p)
}

// UpdatePerformance merges a partial performance update into the record and persists it.
func (s *CatalogService) UpdatePerformance(ctx context.Context, id string, u PerformanceUpdate) (*models.Product, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	release, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updated := ApplyPerformanceUpdate(*p, u, s.now())
	return s.persist(ctx, updated)
}

// persist writes p to the store and, unless the write failed hard, to memory.
func (s *CatalogService) persist(ctx context.Context, p models.Product) (*models.Product, error) {
	s.writes.RLock()
	storeErr := s.store.Upsert(ctx, &p)
	if storeErr != nil && !IsFallback(storeErr) {
		s.writes.RUnlock()
		log.Error().Err(storeErr).Str("product_id", p.ID).Msg("Failed to save product")
		return nil, storeErr
	}
	s.put(p)
	s.writes.RUnlock()

	s.notifier.NotifyProductSaved(&p, storeErr != nil)
	return &p, storeErr
}

// acquire marks id as busy. Overlapping writes to the same id are rejected.
func (s *CatalogService) acquire(id string) (func(), error) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()

	if _, busy := s.inflight[id]; busy {
		return nil, utils.ErrOperationInProgress
	}
	s.inflight[id] = struct{}{}
	return func() {
		s.inflightMu.Lock()
		delete(s.inflight, id)
		s.inflightMu.Unlock()
	}, nil
}

// put replaces the record in place or prepends it when new.
func (s *CatalogService) put(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(p.ID); idx >= 0 {
		s.products[idx] = p.Clone()
		return
	}
	s.products = append([]models.Product{p.Clone()}, s.products...)
}

// indexOf must be called with mu held.
func (s *CatalogService) indexOf(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func mergeEnrichment(p *models.Product, res *enrichment.Result) {
	if res == nil {
		return
	}
	p.SalesPageScore = res.SalesPageScore
	p.AIVerdict = res.AIVerdict
	assets := res.AdsAssets
	p.AdsAssets = &assets
	if res.MarketInsights != nil {
		mi := *res.MarketInsights
		p.MarketInsights = &mi
	}
	p.GroundingURLs = append([]models.GroundingSource(nil), res.GroundingURLs...)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// Filter keeps products whose name contains search (case-insensitive) and whose
// niche matches. An empty niche or AllNiches matches every niche.
func Filter(products []models.Product, search, niche string) []models.Product {
	needle := strings.ToLower(strings.TrimSpace(search))
	niche = strings.TrimSpace(niche)

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if niche != "" && niche != models.AllNiches && string(p.Niche) != niche {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Aggregate sums potential commission and averages estimated ROI. Empty input yields zeros.
func Aggregate(products []models.Product) Stats {
	stats := Stats{Count: len(products)}
	if len(products) == 0 {
		return stats
	}

	var roiSum float64
	for _, p := range products {
		stats.TotalPotentialCommissionCash += p.FinancialAnalysis.TotalCommissionCash
		roiSum += p.FinancialAnalysis.ROIPercent
	}
	stats.AverageROIPercent = roiSum / float64(len(products))
	return stats
}
