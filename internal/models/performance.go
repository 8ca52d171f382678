package models

// AdStatus is the state of the campaign on the ad platform.
type AdStatus string

const (
	AdStatusActive   AdStatus = "Ativo"
	AdStatusPaused   AdStatus = "Pausado"
	AdStatusRejected AdStatus = "Reprovado"
)

// PixelStatus is the health of the conversion pixel.
type PixelStatus string

const (
	PixelOK      PixelStatus = "Ok"
	PixelError   PixelStatus = "Erro"
	PixelMissing PixelStatus = "Sem Pixel"
)

// Performance accumulates real campaign figures for a product.
// LastUpdate is unix milliseconds.
type Performance struct {
	TotalSpent   float64 `json:"totalSpent"`
	ActualClicks float64 `json:"actualClicks"`
	Conversions  float64 `json:"conversions"`
	SalesValue   float64 `json:"salesValue"`
	LastUpdate   int64   `json:"lastUpdate"`

	AccountName  string      `json:"accountName,omitempty"`
	CampaignName string      `json:"campaignName,omitempty"`
	LaunchDate   string      `json:"launchDate,omitempty"`
	AdStatus     AdStatus    `json:"adStatus,omitempty"`
	PixelStatus  PixelStatus `json:"pixelStatus,omitempty"`
	BidStrategy  string      `json:"bidStrategy,omitempty"`
}
