package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/garimpo_api/internal/enrichment"
	"github.com/GTDGit/garimpo_api/internal/finance"
	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/store"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

var errBoom = errors.New("boom")

// memStore records writes and can be told to fail softly (fallback) or hard.
type memStore struct {
	mu       sync.Mutex
	rows     []models.Product
	fallback bool
	hard     bool
	upserts  int
	block    chan struct{}

	// listEntered is signalled when List starts; List then waits for listGate.
	listEntered chan struct{}
	listGate    chan struct{}
}

func (m *memStore) fail(op string) error {
	switch {
	case m.hard:
		return fmt.Errorf("%w: disk full", utils.ErrLocalCache)
	case m.fallback:
		return &store.UnavailableError{Op: op, Err: errBoom}
	}
	return nil
}

func (m *memStore) List(context.Context) ([]models.Product, error) {
	if m.listGate != nil {
		m.listEntered <- struct{}{}
		<-m.listGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Product(nil), m.rows...)
	if m.hard {
		return nil, m.fail("list")
	}
	return out, m.fail("list")
}

func (m *memStore) Upsert(_ context.Context, p *models.Product) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.hard {
		return m.fail("upsert")
	}
	for i := range m.rows {
		if m.rows[i].ID == p.ID {
			m.rows[i] = p.Clone()
			return m.fail("upsert")
		}
	}
	m.rows = append([]models.Product{p.Clone()}, m.rows...)
	return m.fail("upsert")
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hard {
		return m.fail("delete")
	}
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			break
		}
	}
	return m.fail("delete")
}

type fakeEnricher struct {
	enabled bool
	result  *enrichment.Result
	calls   int
}

func (f *fakeEnricher) Enabled() bool { return f.enabled }

func (f *fakeEnricher) Enrich(context.Context, enrichment.Request) *enrichment.Result {
	f.calls++
	return f.result
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(st store.Store, enr Enricher) *CatalogService {
	svc := NewCatalogService(st, enr, finance.NewModel(finance.DefaultThresholds(), finance.DefaultClicksPerSale))
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc
}

func validInput() CreateInput {
	return CreateInput{
		Name:              "Método Renda Extra",
		Platform:          string(models.PlatformHotmart),
		Niche:             string(models.NicheFinance),
		Link:              "https://hotmart.example/renda",
		ActualPrice:       97,
		ActualCommPercent: 50,
		AvgCPC:            1.5,
	}
}

func TestCreateRecord_ManualDefaults(t *testing.T) {
	st := &memStore{}
	svc := newTestService(st, nil)

	p, err := svc.CreateRecord(context.Background(), validInput(), nil)
	require.NoError(t, err)

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, fixedNow.UnixMilli(), p.CreatedAt)
	assert.Equal(t, models.DefaultSalesPageScore, p.SalesPageScore)
	assert.Equal(t, models.ManualAuditVerdict, p.AIVerdict)
	assert.Nil(t, p.AdsAssets)
	assert.Nil(t, p.MarketInsights)
	assert.InDelta(t, 48.5, p.FinancialAnalysis.TotalCommissionCash, 1e-9)
	assert.Equal(t, models.ViabilityLoss, p.FinancialAnalysis.ViabilityStatus)
	assert.Equal(t, p.FinancialAnalysis.ROIPercent, p.FinalScore)

	assert.Len(t, st.rows, 1)
	assert.Len(t, svc.List(), 1)
}

func TestCreateRecord_MergesEnrichment(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	res := &enrichment.Result{
		SalesPageScore: 9,
		AIVerdict:      "Oferta forte",
		AdsAssets:      models.AdsAssets{Keywords: []string{"a"}, Titles: []string{"b"}, Descriptions: []string{"c"}},
		MarketInsights: &models.MarketInsights{TrendStatus: models.TrendRising, CompetitionLevel: models.CompetitionLow},
	}

	p, err := svc.CreateRecord(context.Background(), validInput(), res)
	require.NoError(t, err)

	assert.Equal(t, 9.0, p.SalesPageScore)
	assert.Equal(t, "Oferta forte", p.AIVerdict)
	require.NotNil(t, p.AdsAssets)
	assert.Equal(t, []string{"a"}, p.AdsAssets.Keywords)
	require.NotNil(t, p.MarketInsights)
	assert.Equal(t, models.TrendRising, p.MarketInsights.TrendStatus)
}

func TestCreateRecord_KeepsGroundingSources(t *testing.T) {
	sources := []models.GroundingSource{{Title: "Página oficial", URI: "https://hotmart.example/renda"}}
	res := &enrichment.Result{SalesPageScore: 8, AIVerdict: "boa", GroundingURLs: sources}
	svc := newTestService(&memStore{}, nil)

	p, err := svc.CreateRecord(context.Background(), validInput(), res)
	require.NoError(t, err)
	assert.Equal(t, sources, p.GroundingURLs)

	res.GroundingURLs[0].Title = "mutated"
	got, err := svc.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Página oficial", got.GroundingURLs[0].Title)
}

func TestCreateRecord_Validation(t *testing.T) {
	st := &memStore{}
	svc := newTestService(st, nil)

	in := validInput()
	in.Name = "   "
	in.Link = ""
	in.Platform = "Shopee"
	in.ActualCommPercent = 120

	p, err := svc.CreateRecord(context.Background(), in, nil)
	assert.Nil(t, p)
	require.ErrorIs(t, err, utils.ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "link")
	assert.Contains(t, verr.Fields, "platform")
	assert.Contains(t, verr.Fields, "actualCommPercent")
	assert.Zero(t, st.upserts)
	assert.Empty(t, svc.List())
}

func TestCreateRecord_ResubmitKeepsIdentity(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	res := &enrichment.Result{SalesPageScore: 8, AIVerdict: "ok", AdsAssets: models.AdsAssets{Keywords: []string{"k"}}}
	first, err := svc.CreateRecord(ctx, validInput(), res)
	require.NoError(t, err)

	spent := 40.0
	_, err = svc.UpdatePerformance(ctx, first.ID, PerformanceUpdate{TotalSpent: &spent})
	require.NoError(t, err)

	svc.now = func() time.Time { return fixedNow.Add(time.Hour) }
	in := validInput()
	in.ID = first.ID
	in.AvgCPC = 0.5
	second, err := svc.CreateRecord(ctx, in, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	require.NotNil(t, second.Performance)
	assert.Equal(t, 40.0, second.Performance.TotalSpent)
	assert.Equal(t, 8.0, second.SalesPageScore)
	require.NotNil(t, second.AdsAssets)
	assert.NotEqual(t, first.FinalScore, second.FinalScore)
	assert.Len(t, svc.List(), 1)
}

func TestCreateRecord_NewestFirst(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateRecord(ctx, validInput(), nil)
		require.NoError(t, err)
	}

	list := svc.List()
	require.Len(t, list, 3)
	assert.Equal(t, "id-3", list[0].ID)
	assert.Equal(t, "id-1", list[2].ID)
}

func TestCreateRecord_StoreFallback(t *testing.T) {
	st := &memStore{fallback: true}
	svc := newTestService(st, nil)

	p, err := svc.CreateRecord(context.Background(), validInput(), nil)
	require.NotNil(t, p)
	assert.ErrorIs(t, err, utils.ErrStoreUnavailable)
	assert.True(t, IsFallback(err))
	assert.Len(t, svc.List(), 1)
}

func TestCreateRecord_HardStoreFailure(t *testing.T) {
	svc := newTestService(&memStore{hard: true}, nil)

	p, err := svc.CreateRecord(context.Background(), validInput(), nil)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, utils.ErrLocalCache)
	assert.Empty(t, svc.List())
}

func TestSubmit_EnrichOnlyWhenAsked(t *testing.T) {
	enr := &fakeEnricher{enabled: true, result: &enrichment.Result{SalesPageScore: 6, AIVerdict: "média"}}
	svc := newTestService(&memStore{}, enr)
	ctx := context.Background()

	p, err := svc.Submit(ctx, validInput(), false)
	require.NoError(t, err)
	assert.Equal(t, models.ManualAuditVerdict, p.AIVerdict)
	assert.Zero(t, enr.calls)

	p, err = svc.Submit(ctx, validInput(), true)
	require.NoError(t, err)
	assert.Equal(t, "média", p.AIVerdict)
	assert.Equal(t, 1, enr.calls)

	bad := validInput()
	bad.Name = ""
	_, err = svc.Submit(ctx, bad, true)
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.Equal(t, 1, enr.calls)
}

func TestSubmit_EnrichmentFailureUsesDefaults(t *testing.T) {
	enr := &fakeEnricher{enabled: true}
	svc := newTestService(&memStore{}, enr)

	p, err := svc.Submit(context.Background(), validInput(), true)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSalesPageScore, p.SalesPageScore)
	assert.Equal(t, models.ManualAuditVerdict, p.AIVerdict)
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	disabled := newTestService(&memStore{}, &fakeEnricher{})
	_, err := disabled.Enrich(ctx, "x")
	assert.ErrorIs(t, err, utils.ErrEnrichmentDisabled)

	failing := newTestService(&memStore{}, &fakeEnricher{enabled: true})
	created, err := failing.CreateRecord(ctx, validInput(), nil)
	require.NoError(t, err)
	_, err = failing.Enrich(ctx, created.ID)
	assert.ErrorIs(t, err, utils.ErrEnrichmentFailed)
	assert.NotErrorIs(t, err, utils.ErrEnrichmentDisabled)

	enr := &fakeEnricher{enabled: true, result: &enrichment.Result{SalesPageScore: 9.5, AIVerdict: "excelente"}}
	svc := newTestService(&memStore{}, enr)

	_, err = svc.Enrich(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	p, err := svc.CreateRecord(ctx, validInput(), nil)
	require.NoError(t, err)

	enriched, err := svc.Enrich(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.5, enriched.SalesPageScore)
	assert.Equal(t, p.FinalScore, enriched.FinalScore)

	got, err := svc.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "excelente", got.AIVerdict)
}

func TestDeleteRecord(t *testing.T) {
	st := &memStore{}
	svc := newTestService(st, nil)
	ctx := context.Background()

	p, err := svc.CreateRecord(ctx, validInput(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRecord(ctx, "nope"))
	assert.Len(t, svc.List(), 1)

	require.NoError(t, svc.DeleteRecord(ctx, p.ID))
	assert.Empty(t, svc.List())
	assert.Empty(t, st.rows)

	_, err = svc.Get(p.ID)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	st := &memStore{rows: []models.Product{
		{ID: "b", Name: "B", ActualPrice: 100, ActualCommPercent: 50, AvgCPC: 0.5, CreatedAt: 2},
		{ID: "a", Name: "A", CreatedAt: 1, FinancialAnalysis: models.FinancialAnalysis{ViabilityStatus: models.ViabilityCaution, ROIPercent: 25}},
	}}
	svc := newTestService(st, nil)

	require.NoError(t, svc.Load(ctx))
	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	// a record whose analysis blob was unreadable is recomputed
	assert.Equal(t, models.ViabilityProfitable, list[0].FinancialAnalysis.ViabilityStatus)
	assert.Equal(t, 25.0, list[1].FinancialAnalysis.ROIPercent)

	st.hard = true
	assert.Error(t, svc.Load(ctx))
	assert.Len(t, svc.List(), 2, "last known state kept")

	st.hard = false
	st.fallback = true
	st.rows = st.rows[:1]
	err := svc.Load(ctx)
	assert.True(t, IsFallback(err))
	assert.Len(t, svc.List(), 1, "fallback snapshot adopted")
}

func TestLoad_DoesNotDropConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	st := &memStore{
		rows:        []models.Product{{ID: "old", Name: "Old", CreatedAt: 1}},
		listEntered: make(chan struct{}, 1),
		listGate:    make(chan struct{}),
	}
	svc := newTestService(st, nil)

	loaded := make(chan error, 1)
	go func() { loaded <- svc.Load(ctx) }()
	<-st.listEntered

	created := make(chan *models.Product, 1)
	go func() {
		p, err := svc.CreateRecord(ctx, validInput(), nil)
		assert.NoError(t, err)
		created <- p
	}()

	// the write waits for the reload instead of landing inside its snapshot
	select {
	case <-created:
		t.Fatal("write completed while the catalog was reloading")
	case <-time.After(50 * time.Millisecond):
	}

	close(st.listGate)
	require.NoError(t, <-loaded)
	p := <-created

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, p.ID, list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestUpdatePerformance(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	_, err := svc.UpdatePerformance(ctx, "missing", PerformanceUpdate{})
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	p, err := svc.CreateRecord(ctx, validInput(), nil)
	require.NoError(t, err)

	negative := -5.0
	_, err = svc.UpdatePerformance(ctx, p.ID, PerformanceUpdate{TotalSpent: &negative})
	assert.ErrorIs(t, err, utils.ErrValidation)

	spent, conv := 90.0, 3.0
	updated, err := svc.UpdatePerformance(ctx, p.ID, PerformanceUpdate{TotalSpent: &spent, Conversions: &conv})
	require.NoError(t, err)
	assert.True(t, updated.IsLive())
	assert.Equal(t, p.FinalScore, updated.FinalScore)
	assert.InDelta(t, (3*48.5-90)/90*100, finance.LatestROI(updated), 1e-9)
}

func TestInFlightGuard(t *testing.T) {
	st := &memStore{block: make(chan struct{})}
	svc := newTestService(st, nil)
	ctx := context.Background()

	in := validInput()
	in.ID = "busy"

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateRecord(ctx, in, nil)
		done <- err
	}()

	require.Eventually(t, func() bool {
		svc.inflightMu.Lock()
		defer svc.inflightMu.Unlock()
		_, busy := svc.inflight["busy"]
		return busy
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, svc.DeleteRecord(ctx, "busy"), utils.ErrOperationInProgress)

	close(st.block)
	require.NoError(t, <-done)
	require.NoError(t, svc.DeleteRecord(ctx, "busy"))
}

func TestFilter(t *testing.T) {
	products := []models.Product{
		{ID: "1", Name: "Curso de Investimentos", Niche: models.NicheFinance},
		{ID: "2", Name: "Dieta Rápida", Niche: models.NicheHealth},
		{ID: "3", Name: "investir em FIIs", Niche: models.NicheFinance},
	}

	tests := []struct {
		name   string
		search string
		niche  string
		want   []string
	}{
		{"no filters", "", "", []string{"1", "2", "3"}},
		{"wildcard niche", "", models.AllNiches, []string{"1", "2", "3"}},
		{"case insensitive", "INVEST", "", []string{"1", "3"}},
		{"niche only", "", string(models.NicheHealth), []string{"2"}},
		{"both predicates", "dieta", string(models.NicheFinance), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(products, tt.search, tt.niche)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, Stats{}, Aggregate(nil))
	assert.Equal(t, Stats{}, Aggregate([]models.Product{}))

	stats := Aggregate([]models.Product{
		{FinancialAnalysis: models.FinancialAnalysis{TotalCommissionCash: 10, ROIPercent: 50}},
		{FinancialAnalysis: models.FinancialAnalysis{TotalCommissionCash: 30, ROIPercent: -10}},
	})
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 40.0, stats.TotalPotentialCommissionCash)
	assert.Equal(t, 20.0, stats.AverageROIPercent)
}
