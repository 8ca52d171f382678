package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/GTDGit/garimpo_api/internal/cache"
	"github.com/GTDGit/garimpo_api/internal/models"
)

const validPayload = `{
  "salesPageScore": 8.5,
  "aiVerdict": "  Página forte com bônus agressivos ",
  "adsAssets": {
    "keywords": ["comprar curso", "  ", "curso oficial"],
    "titles": ["Garanta já"],
    "descriptions": ["Oferta por tempo limitado"]
  },
  "marketInsights": {"searchVolume": "10k", "trendStatus": "Crescente", "competitionLevel": "Média"},
  "suggestedCPC": 1.2
}`

type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	sources []models.GroundingSource
	err     error
	panics  bool
	calls   int
	prompt  string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (*Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompt = prompt
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Generation{Text: f.text, Sources: f.sources}, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

var req = Request{ProductName: "Curso X", SalesURL: "https://x.example/vendas", Niche: string(models.NicheFinance)}

func TestNormalize_Valid(t *testing.T) {
	res, err := Normalize([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, 8.5, res.SalesPageScore)
	assert.Equal(t, "Página forte com bônus agressivos", res.AIVerdict)
	assert.Equal(t, []string{"comprar curso", "curso oficial"}, res.AdsAssets.Keywords)
	require.NotNil(t, res.MarketInsights)
	assert.Equal(t, models.TrendRising, res.MarketInsights.TrendStatus)
	assert.Equal(t, models.CompetitionMedium, res.MarketInsights.CompetitionLevel)
	assert.Equal(t, "10k", res.MarketInsights.SearchVolume)
	assert.Equal(t, 1.2, res.MarketInsights.EstimatedCPC)
}

func TestNormalize_CodeFence(t *testing.T) {
	res, err := Normalize([]byte("```json\n" + validPayload + "\n```"))
	require.NoError(t, err)
	assert.Equal(t, 8.5, res.SalesPageScore)
}

func TestNormalize_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ``},
		{"not json", `Claro! Aqui está a análise`},
		{"score as string", `{"salesPageScore":"9","aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]}}`},
		{"score missing", `{"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]}}`},
		{"score above range", `{"salesPageScore":11,"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]}}`},
		{"score negative", `{"salesPageScore":-1,"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]}}`},
		{"blank verdict", `{"salesPageScore":5,"aiVerdict":"  ","adsAssets":{"keywords":[],"titles":[],"descriptions":[]}}`},
		{"assets missing", `{"salesPageScore":5,"aiVerdict":"ok"}`},
		{"titles missing", `{"salesPageScore":5,"aiVerdict":"ok","adsAssets":{"keywords":[],"descriptions":[]}}`},
		{"keywords wrong type", `{"salesPageScore":5,"aiVerdict":"ok","adsAssets":{"keywords":"a,b","titles":[],"descriptions":[]}}`},
		{"unknown trend", `{"salesPageScore":5,"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]},"marketInsights":{"trendStatus":"Explodindo","competitionLevel":"Alta"}}`},
		{"unknown competition", `{"salesPageScore":5,"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]},"marketInsights":{"trendStatus":"Queda","competitionLevel":"?"}}`},
		{"negative suggested cpc", `{"salesPageScore":5,"aiVerdict":"ok","adsAssets":{"keywords":[],"titles":[],"descriptions":[]},"suggestedCPC":-2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Normalize([]byte(tt.payload))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestNormalize_SuggestedValuesWithoutInsights(t *testing.T) {
	res, err := Normalize([]byte(`{"salesPageScore":0,"aiVerdict":"fraca","adsAssets":{"keywords":[],"titles":[],"descriptions":[]},"suggestedCPC":0.8,"suggestedVolume":"1k"}`))
	require.NoError(t, err)
	require.NotNil(t, res.MarketInsights)
	assert.Equal(t, 0.8, res.MarketInsights.EstimatedCPC)
	assert.Equal(t, "1k", res.MarketInsights.SearchVolume)
	assert.Equal(t, 0.0, res.SalesPageScore)
}

func TestGateway_Disabled(t *testing.T) {
	g := NewGateway(nil, nil, time.Second)
	assert.False(t, g.Enabled())
	assert.Nil(t, g.Enrich(context.Background(), req))

	var nilGateway *Gateway
	assert.False(t, nilGateway.Enabled())
	assert.Nil(t, nilGateway.Enrich(context.Background(), req))
}

func TestGateway_Enrich(t *testing.T) {
	gen := &fakeGenerator{text: validPayload}
	g := NewGateway(gen, nil, time.Second)

	res := g.Enrich(context.Background(), req)
	require.NotNil(t, res)
	assert.Equal(t, 8.5, res.SalesPageScore)
	assert.Contains(t, gen.prompt, "Curso X")
	assert.Contains(t, gen.prompt, "https://x.example/vendas")
}

func TestGateway_FailuresYieldNil(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{err: errors.New("503 unavailable")}},
		{"malformed answer", &fakeGenerator{text: `{"salesPageScore":`}},
		{"schema violation", &fakeGenerator{text: `{"salesPageScore":99,"aiVerdict":"x"}`}},
		{"panic", &fakeGenerator{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(tt.gen, nil, time.Second)
			assert.NotPanics(t, func() {
				assert.Nil(t, g.Enrich(context.Background(), req))
			})
		})
	}
}

func TestGateway_UsesCache(t *testing.T) {
	gen := &fakeGenerator{text: validPayload}
	kv := &memKV{data: map[string]string{}}
	g := NewGateway(gen, cache.NewEnrichmentCache(kv, time.Hour), time.Second)

	first := g.Enrich(context.Background(), req)
	second := g.Enrich(context.Background(), req)

	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)
	assert.Len(t, kv.data, 1)
}

func TestGateway_CarriesGroundingSources(t *testing.T) {
	gen := &fakeGenerator{
		text: validPayload,
		sources: []models.GroundingSource{
			{Title: "Reclame Aqui", URI: "https://reclameaqui.example/curso-x"},
			{Title: "duplicate", URI: "https://reclameaqui.example/curso-x"},
			{Title: "", URI: "https://x.example/vendas"},
			{Title: "not a link", URI: "vertexaisearch"},
		},
	}
	kv := &memKV{data: map[string]string{}}
	g := NewGateway(gen, cache.NewEnrichmentCache(kv, time.Hour), time.Second)

	want := []models.GroundingSource{
		{Title: "Reclame Aqui", URI: "https://reclameaqui.example/curso-x"},
		{Title: "https://x.example/vendas", URI: "https://x.example/vendas"},
	}
	res := g.Enrich(context.Background(), req)
	require.NotNil(t, res)
	assert.Equal(t, want, res.GroundingURLs)

	cached := g.Enrich(context.Background(), req)
	require.NotNil(t, cached)
	assert.Equal(t, want, cached.GroundingURLs)
	assert.Equal(t, 1, gen.calls)
}

func TestNormalize_ProseAroundObject(t *testing.T) {
	res, err := Normalize([]byte("Segue a auditoria:\n" + validPayload + "\nBoa sorte!"))
	require.NoError(t, err)
	assert.Equal(t, 8.5, res.SalesPageScore)

	_, err = Normalize([]byte("sem auditoria hoje"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestGroundingSources(t *testing.T) {
	assert.Nil(t, groundingSources(nil))
	assert.Nil(t, groundingSources(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{Title: "hotmart.example", URI: "https://hotmart.example/p"}},
					{},
					{Web: &genai.GroundingChunkWeb{Title: "empty"}},
				},
			},
		}},
	}
	assert.Equal(t, []models.GroundingSource{{Title: "hotmart.example", URI: "https://hotmart.example/p"}}, groundingSources(resp))
}

func TestRejectsStructuredOutput(t *testing.T) {
	assert.True(t, rejectsStructuredOutput(errors.New("Error 400, Message: Tool use with a response mime type: 'application/json' is unsupported (response_mime_type)")))
	assert.True(t, rejectsStructuredOutput(errors.New("controlled generation is not supported with google_search tool")))
	assert.False(t, rejectsStructuredOutput(errors.New("Error 429, quota exceeded")))
}

func TestFingerprint(t *testing.T) {
	a := fingerprint(req)
	b := fingerprint(Request{ProductName: "  curso x ", SalesURL: req.SalesURL, Niche: req.Niche})
	c := fingerprint(Request{ProductName: "Curso Y", SalesURL: req.SalesURL, Niche: req.Niche})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
