package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/GTDGit/garimpo_api/internal/models"
)

const systemInstruction = "Você é um Estrategista Sênior de Google Ads. Responda apenas com JSON válido seguindo o schema."

// jsonShapeHint replaces the response schema when the model refuses to combine it with search.
const jsonShapeHint = `Responda somente com um objeto JSON com as chaves: salesPageScore (número de 0 a 10), aiVerdict (texto),
adsAssets {keywords, titles, descriptions} (listas de textos), marketInsights {searchVolume, trendStatus (Crescente, Estável ou Queda),
competitionLevel (Baixa, Média ou Alta)}, suggestedCPC (número) e suggestedVolume (texto).`

// GeminiGenerator calls the Gemini API through the genai client.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	search bool
}

// NewGeminiGenerator creates a generator for model using apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// SetSearchGrounding enables the Google Search tool so the audit can cite the pages it read.
func (g *GeminiGenerator) SetSearchGrounding(enabled bool) {
	g.search = enabled
}

// Generate sends prompt and returns the JSON text of the first candidate with its web sources.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}
	if g.search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil && g.search && rejectsStructuredOutput(err) {
		// Some models only accept search with free-form output.
		log.Debug().Err(err).Str("model", g.model).Msg("structured output rejected with search, retrying without schema")
		cfg.ResponseMIMEType = ""
		cfg.ResponseSchema = nil
		cfg.SystemInstruction = genai.NewContentFromText(systemInstruction+"\n"+jsonShapeHint, genai.RoleUser)
		resp, err = g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("gemini returned an empty response")
	}
	return &Generation{Text: text, Sources: groundingSources(resp)}, nil
}

func rejectsStructuredOutput(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"response_mime_type", "responsemimetype", "response mime type", "response_schema", "responseschema", "controlled generation"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// groundingSources lists the web pages behind the first candidate.
func groundingSources(resp *genai.GenerateContentResponse) []models.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []models.GroundingSource
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, models.GroundingSource{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

func responseSchema() *genai.Schema {
	stringList := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"salesPageScore": {Type: genai.TypeNumber},
			"aiVerdict":      {Type: genai.TypeString},
			"adsAssets": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"keywords":     stringList,
					"titles":       stringList,
					"descriptions": stringList,
				},
				Required: []string{"keywords", "titles", "descriptions"},
			},
			"marketInsights": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"searchVolume":     {Type: genai.TypeString},
					"trendStatus":      {Type: genai.TypeString, Enum: []string{"Crescente", "Estável", "Queda"}},
					"competitionLevel": {Type: genai.TypeString, Enum: []string{"Baixa", "Média", "Alta"}},
				},
				Required: []string{"trendStatus", "competitionLevel"},
			},
			"suggestedCPC":    {Type: genai.TypeNumber},
			"suggestedVolume": {Type: genai.TypeString},
		},
		Required: []string{"salesPageScore", "aiVerdict", "adsAssets"},
	}
}
