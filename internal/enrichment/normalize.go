package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/GTDGit/garimpo_api/internal/models"
)

// ErrInvalidPayload is returned when the model answer does not satisfy the expected shape.
var ErrInvalidPayload = errors.New("invalid enrichment payload")

type rawAssets struct {
	Keywords     *[]string `json:"keywords"`
	Titles       *[]string `json:"titles"`
	Descriptions *[]string `json:"descriptions"`
}

type rawInsights struct {
	SearchVolume     string   `json:"searchVolume"`
	TrendStatus      string   `json:"trendStatus"`
	EstimatedCPC     *float64 `json:"estimatedCPC"`
	CompetitionLevel string   `json:"competitionLevel"`
}

type rawPayload struct {
	SalesPageScore  *float64     `json:"salesPageScore"`
	AIVerdict       string       `json:"aiVerdict"`
	AdsAssets       *rawAssets   `json:"adsAssets"`
	MarketInsights  *rawInsights `json:"marketInsights"`
	SuggestedCPC    *float64     `json:"suggestedCPC"`
	SuggestedVolume string       `json:"suggestedVolume"`

	GroundingURLs []models.GroundingSource `json:"groundingUrls"`
}

var trendAliases = map[string]models.TrendStatus{
	"rising":    models.TrendRising,
	"crescente": models.TrendRising,
	"stable":    models.TrendStable,
	"estável":   models.TrendStable,
	"estavel":   models.TrendStable,
	"declining": models.TrendDeclining,
	"queda":     models.TrendDeclining,
}

var competitionAliases = map[string]models.CompetitionLevel{
	"low":    models.CompetitionLow,
	"baixa":  models.CompetitionLow,
	"medium": models.CompetitionMedium,
	"média":  models.CompetitionMedium,
	"media":  models.CompetitionMedium,
	"high":   models.CompetitionHigh,
	"alta":   models.CompetitionHigh,
}

// Normalize parses and validates a model answer. Any violation rejects the whole payload.
func Normalize(data []byte) (*Result, error) {
	text := strings.TrimSpace(string(data))
	text = extractObject(stripCodeFence(text))
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidPayload)
	}

	var raw rawPayload
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if raw.SalesPageScore == nil {
		return nil, fmt.Errorf("%w: salesPageScore missing", ErrInvalidPayload)
	}
	score := *raw.SalesPageScore
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 10 {
		return nil, fmt.Errorf("%w: salesPageScore %v out of range", ErrInvalidPayload, score)
	}

	verdict := strings.TrimSpace(raw.AIVerdict)
	if verdict == "" {
		return nil, fmt.Errorf("%w: aiVerdict missing", ErrInvalidPayload)
	}

	if raw.AdsAssets == nil || raw.AdsAssets.Keywords == nil || raw.AdsAssets.Titles == nil || raw.AdsAssets.Descriptions == nil {
		return nil, fmt.Errorf("%w: adsAssets incomplete", ErrInvalidPayload)
	}

	res := &Result{
		SalesPageScore: score,
		AIVerdict:      verdict,
		AdsAssets: models.AdsAssets{
			Keywords:     cleanList(*raw.AdsAssets.Keywords),
			Titles:       cleanList(*raw.AdsAssets.Titles),
			Descriptions: cleanList(*raw.AdsAssets.Descriptions),
		},
		GroundingURLs: mergeSources(nil, raw.GroundingURLs),
	}

	if raw.MarketInsights != nil {
		mi, err := normalizeInsights(raw.MarketInsights)
		if err != nil {
			return nil, err
		}
		res.MarketInsights = mi
	}

	if raw.SuggestedCPC != nil || strings.TrimSpace(raw.SuggestedVolume) != "" {
		if res.MarketInsights == nil {
			// the estimates alone do not say anything about trend or competition
			res.MarketInsights = &models.MarketInsights{
				TrendStatus:      models.TrendStable,
				CompetitionLevel: models.CompetitionMedium,
			}
		}
		if raw.SuggestedCPC != nil {
			cpc := *raw.SuggestedCPC
			if math.IsNaN(cpc) || math.IsInf(cpc, 0) || cpc < 0 {
				return nil, fmt.Errorf("%w: suggestedCPC %v invalid", ErrInvalidPayload, cpc)
			}
			res.MarketInsights.EstimatedCPC = cpc
		}
		if v := strings.TrimSpace(raw.SuggestedVolume); v != "" {
			res.MarketInsights.SearchVolume = v
		}
	}

	return res, nil
}

func normalizeInsights(raw *rawInsights) (*models.MarketInsights, error) {
	trend, ok := trendAliases[strings.ToLower(strings.TrimSpace(raw.TrendStatus))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown trendStatus %q", ErrInvalidPayload, raw.TrendStatus)
	}
	competition, ok := competitionAliases[strings.ToLower(strings.TrimSpace(raw.CompetitionLevel))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown competitionLevel %q", ErrInvalidPayload, raw.CompetitionLevel)
	}
	mi := &models.MarketInsights{
		SearchVolume:     strings.TrimSpace(raw.SearchVolume),
		TrendStatus:      trend,
		CompetitionLevel: competition,
	}
	if raw.EstimatedCPC != nil {
		if *raw.EstimatedCPC < 0 || math.IsNaN(*raw.EstimatedCPC) || math.IsInf(*raw.EstimatedCPC, 0) {
			return nil, fmt.Errorf("%w: estimatedCPC invalid", ErrInvalidPayload)
		}
		mi.EstimatedCPC = *raw.EstimatedCPC
	}
	return mi, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripCodeFence removes a ```json fence some models wrap around the answer.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractObject trims prose a model adds around the JSON object when it answers
// without a response schema.
func extractObject(s string) string {
	if strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// mergeSources appends the web sources in add to base, skipping blank and
// duplicate URIs. Only http(s) links are kept.
func mergeSources(base, add []models.GroundingSource) []models.GroundingSource {
	seen := make(map[string]struct{}, len(base)+len(add))
	var out []models.GroundingSource
	for _, src := range append(append([]models.GroundingSource(nil), base...), add...) {
		uri := strings.TrimSpace(src.URI)
		if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		title := strings.TrimSpace(src.Title)
		if title == "" {
			title = uri
		}
		out = append(out, models.GroundingSource{Title: title, URI: uri})
	}
	return out
}
