package models

// Platform enumerates the affiliate platforms a product can be sold on.
type Platform string

const (
	PlatformHotmart   Platform = "Hotmart"
	PlatformKiwify    Platform = "Kiwify"
	PlatformEduzz     Platform = "Eduzz"
	PlatformMonetizze Platform = "Monetizze"
	PlatformClickBank Platform = "ClickBank"
	PlatformAmazon    Platform = "Amazon"
	PlatformOther     Platform = "Outra"
)

// Platforms lists every known platform in form order.
var Platforms = []Platform{
	PlatformHotmart, PlatformKiwify, PlatformEduzz, PlatformMonetizze,
	PlatformClickBank, PlatformAmazon, PlatformOther,
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Niche enumerates the market categories used to group products.
type Niche string

const (
	NicheFinance       Niche = "Finanças"
	NicheHealth        Niche = "Saúde"
	NicheRelationships Niche = "Relacionamento"
	NicheHobbies       Niche = "Hobbies"
	NicheOnlineBiz     Niche = "Negócios Online"
	NicheSelfGrowth    Niche = "Desenvolvimento Pessoal"
	NicheOther         Niche = "Outro"
)

// AllNiches is the listing wildcard that disables the niche filter.
const AllNiches = "Todos"

// Niches lists every known niche in form order.
var Niches = []Niche{
	NicheFinance, NicheHealth, NicheRelationships, NicheHobbies,
	NicheOnlineBiz, NicheSelfGrowth, NicheOther,
}

// Valid reports whether n is a known niche.
func (n Niche) Valid() bool {
	for _, known := range Niches {
		if n == known {
			return true
		}
	}
	return false
}

// Manual defaults applied when a product is registered without enrichment.
const (
	DefaultSalesPageScore = 7.0
	ManualAuditVerdict    = "Auditado manualmente"
)

// Product is one affiliate offer ("garimpo") tracked by the catalog.
// ID and CreatedAt are assigned once at creation and never change.
type Product struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Platform          Platform          `json:"platform"`
	Niche             Niche             `json:"niche"`
	Link              string            `json:"link"`
	ActualPrice       float64           `json:"actualPrice"`
	ActualCommPercent float64           `json:"actualCommPercent"`
	AvgCPC            float64           `json:"avgCPC"`
	MinBidCPC         *float64          `json:"minBidCPC,omitempty"`
	MaxBidCPC         *float64          `json:"maxBidCPC,omitempty"`
	SalesPageScore    float64           `json:"salesPageScore"`
	AIVerdict         string            `json:"aiVerdict,omitempty"`
	CreatedAt         int64             `json:"createdAt"`
	FinalScore        float64           `json:"finalScore"`
	FinancialAnalysis FinancialAnalysis `json:"financialAnalysis"`
	MarketInsights    *MarketInsights   `json:"marketInsights,omitempty"`
	AdsAssets         *AdsAssets        `json:"adsAssets,omitempty"`
	Performance       *Performance      `json:"performance,omitempty"`
	GroundingURLs     []GroundingSource `json:"groundingUrls,omitempty"`
}

// IsLive reports whether real ad spend has been recorded for the product.
// A product that is not live is "planned".
func (p *Product) IsLive() bool {
	return p.Performance != nil && p.Performance.TotalSpent > 0
}

// Stage returns the derived lifecycle label: "live" or "planned".
func (p *Product) Stage() string {
	if p.IsLive() {
		return "live"
	}
	return "planned"
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p Product) Clone() Product {
	out := p
	if p.MinBidCPC != nil {
		v := *p.MinBidCPC
		out.MinBidCPC = &v
	}
	if p.MaxBidCPC != nil {
		v := *p.MaxBidCPC
		out.MaxBidCPC = &v
	}
	if p.MarketInsights != nil {
		mi := *p.MarketInsights
		out.MarketInsights = &mi
	}
	if p.AdsAssets != nil {
		aa := AdsAssets{
			Keywords:     append([]string(nil), p.AdsAssets.Keywords...),
			Titles:       append([]string(nil), p.AdsAssets.Titles...),
			Descriptions: append([]string(nil), p.AdsAssets.Descriptions...),
		}
		out.AdsAssets = &aa
	}
	if p.Performance != nil {
		perf := *p.Performance
		out.Performance = &perf
	}
	if p.GroundingURLs != nil {
		out.GroundingURLs = append([]GroundingSource(nil), p.GroundingURLs...)
	}
	return out
}
