// Package enrichment asks a language model to audit a sales page and normalizes the
// loosely-structured answer into optional catalog fields.
package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/cache"
	"github.com/GTDGit/garimpo_api/internal/models"
)

// Request identifies the product to audit.
type Request struct {
	ProductName string `json:"productName"`
	SalesURL    string `json:"salesUrl"`
	Niche       string `json:"niche"`
}

// Result is the normalized enrichment payload.
type Result struct {
	SalesPageScore float64                  `json:"salesPageScore"`
	AIVerdict      string                   `json:"aiVerdict"`
	AdsAssets      models.AdsAssets         `json:"adsAssets"`
	MarketInsights *models.MarketInsights   `json:"marketInsights,omitempty"`
	GroundingURLs  []models.GroundingSource `json:"groundingUrls,omitempty"`
}

// Generation is one raw model answer plus the web sources it was grounded on.
type Generation struct {
	Text    string
	Sources []models.GroundingSource
}

// Generator produces the raw JSON text answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Generation, error)
}

// Gateway wraps the model call. A Gateway without a generator is disabled and
// always returns nil.
type Gateway struct {
	generator Generator
	cache     *cache.EnrichmentCache
	timeout   time.Duration
}

// NewGateway builds a gateway. generator may be nil (no credentials); cache may be nil.
func NewGateway(generator Generator, resultCache *cache.EnrichmentCache, timeout time.Duration) *Gateway {
	return &Gateway{generator: generator, cache: resultCache, timeout: timeout}
}

// Enabled reports whether the gateway can reach a model.
func (g *Gateway) Enabled() bool {
	return g != nil && g.generator != nil
}

// Enrich returns the normalized payload, or nil on any failure. It never panics.
func (g *Gateway) Enrich(ctx context.Context, req Request) (res *Result) {
	if !g.Enabled() {
		log.Debug().Msg("enrichment skipped: gateway disabled")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("product", req.ProductName).Msg("enrichment panicked")
			res = nil
		}
	}()

	fp := fingerprint(req)
	if g.cache != nil {
		if raw, err := g.cache.Get(ctx, fp); err == nil {
			if cached, err := Normalize([]byte(raw)); err == nil {
				return cached
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("enrichment cache read failed")
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	gen, err := g.generator.Generate(ctx, BuildPrompt(req))
	if err != nil {
		log.Warn().Err(err).Str("product", req.ProductName).Msg("enrichment call failed")
		return nil
	}
	if gen == nil {
		log.Warn().Str("product", req.ProductName).Msg("enrichment call returned nothing")
		return nil
	}

	result, err := Normalize([]byte(gen.Text))
	if err != nil {
		log.Warn().Err(err).Str("product", req.ProductName).Msg("enrichment response rejected")
		return nil
	}
	result.GroundingURLs = mergeSources(result.GroundingURLs, gen.Sources)
	log.Info().
		Str("product", req.ProductName).
		Int("sources", len(result.GroundingURLs)).
		Dur("duration", time.Since(start)).
		Msg("enrichment completed")

	if g.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := g.cache.Set(ctx, fp, payload); err != nil {
				log.Warn().Err(err).Msg("enrichment cache write failed")
			}
		}
	}
	return result
}

// BuildPrompt renders the audit instructions for one product.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(`Realize uma auditoria estratégica para o produto: "%s" no nicho %s.
URL da Página de Vendas: %s

TAREFAS OBRIGATÓRIAS:
1. Analise a Página de Vendas e identifique a promessa principal, gatilhos de urgência e bônus.
2. Gere 5 palavras-chave estritamente de fundo de funil (intenção de compra imediata).
3. Crie 5 títulos para anúncios (até 30 caracteres) e 2 descrições longas (até 90 caracteres) usando o tom de voz da página.
4. Estime o CPC médio e o volume de busca apenas como referência.
5. Dê uma nota de 0 a 10 para a força de conversão da página.`,
		req.ProductName, req.Niche, req.SalesURL)
}

func fingerprint(req Request) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.ToLower(strings.TrimSpace(req.ProductName)),
		strings.TrimSpace(req.SalesURL),
		req.Niche,
	}, "\x00")))
	return hex.EncodeToString(sum[:16])
}
