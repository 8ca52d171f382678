package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/enrichment"
	"github.com/GTDGit/garimpo_api/internal/finance"
	"github.com/GTDGit/garimpo_api/internal/models"
	"github.com/GTDGit/garimpo_api/internal/service"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

const fallbackNotice = "Remote store unavailable, changes were saved locally and will be synced later"

// CatalogHandler serves the product catalog endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// productView adds derived figures to a stored product.
type productView struct {
	models.Product
	Stage       string  `json:"stage"`
	RealizedROI float64 `json:"realizedRoi"`
	LatestROI   float64 `json:"latestRoi"`
}

func newProductView(p models.Product) productView {
	return productView{
		Product:     p,
		Stage:       p.Stage(),
		RealizedROI: finance.RealizedROI(p.Performance, p.FinancialAnalysis.TotalCommissionCash),
		LatestROI:   finance.LatestROI(&p),
	}
}

// ListProducts handles GET /v1/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products := service.Filter(h.catalog.List(), c.Query("search"), c.Query("niche"))

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, newProductView(p))
	}

	utils.Success(c, http.StatusOK, "Products retrieved", gin.H{
		"products": views,
		"stats":    service.Aggregate(products),
	})
}

// GetProduct handles GET /v1/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Product retrieved", newProductView(*p))
}

// CreateProduct handles POST /v1/products. ?enrich=true runs the audit before saving.
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var in service.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	enrich, _ := strconv.ParseBool(c.DefaultQuery("enrich", "false"))
	p, err := h.catalog.Submit(c.Request.Context(), in, enrich)
	h.respondWrite(c, http.StatusCreated, "Product saved", p, err)
}

// EnrichProduct handles POST /v1/products/:id/enrich
func (h *CatalogHandler) EnrichProduct(c *gin.Context) {
	p, err := h.catalog.Enrich(c.Request.Context(), c.Param("id"))
	h.respondWrite(c, http.StatusOK, "Product enriched", p, err)
}

// UpdatePerformance handles PATCH /v1/products/:id/performance
func (h *CatalogHandler) UpdatePerformance(c *gin.Context) {
	var u service.PerformanceUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	p, err := h.catalog.UpdatePerformance(c.Request.Context(), c.Param("id"), u)
	h.respondWrite(c, http.StatusOK, "Performance updated", p, err)
}

// DeleteProduct handles DELETE /v1/products/:id. The client confirms before calling.
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	err := h.catalog.DeleteRecord(c.Request.Context(), id)
	if err != nil && !service.IsFallback(err) {
		writeError(c, err)
		return
	}

	data := gin.H{"id": id}
	if err != nil {
		utils.SuccessWithWarning(c, http.StatusOK, "Product deleted", data, "STORE_UNAVAILABLE", fallbackNotice)
		return
	}
	utils.Success(c, http.StatusOK, "Product deleted", data)
}

// PreviewEnrichment handles POST /v1/enrichment/preview
func (h *CatalogHandler) PreviewEnrichment(c *gin.Context) {
	var req enrichment.Request
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductName == "" || req.SalesURL == "" {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "productName and salesUrl are required")
		return
	}
	if !h.catalog.EnrichmentEnabled() {
		writeError(c, utils.ErrEnrichmentDisabled)
		return
	}

	res := h.catalog.Preview(c.Request.Context(), req)
	if res == nil {
		writeError(c, utils.ErrEnrichmentFailed)
		return
	}
	utils.Success(c, http.StatusOK, "Enrichment generated", res)
}

// GetOptions handles GET /v1/meta/options
func (h *CatalogHandler) GetOptions(c *gin.Context) {
	niches := make([]string, 0, len(models.Niches)+1)
	niches = append(niches, models.AllNiches)
	for _, n := range models.Niches {
		niches = append(niches, string(n))
	}

	utils.Success(c, http.StatusOK, "Options retrieved", gin.H{
		"platforms":         models.Platforms,
		"niches":            niches,
		"adStatuses":        []models.AdStatus{models.AdStatusActive, models.AdStatusPaused, models.AdStatusRejected},
		"pixelStatuses":     []models.PixelStatus{models.PixelOK, models.PixelError, models.PixelMissing},
		"enrichmentEnabled": h.catalog.EnrichmentEnabled(),
	})
}

func (h *CatalogHandler) respondWrite(c *gin.Context, status int, message string, p *models.Product, err error) {
	if err != nil && !service.IsFallback(err) {
		writeError(c, err)
		return
	}

	view := newProductView(*p)
	if err != nil {
		utils.SuccessWithWarning(c, status, message, view, "STORE_UNAVAILABLE", fallbackNotice)
		return
	}
	utils.Success(c, status, message, view)
}

func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, utils.Response{
			Success: false,
			Code:    http.StatusBadRequest,
			Message: verr.Error(),
			Error:   &utils.ErrorInfo{Code: utils.ErrValidation.Error(), Message: verr.Error()},
			Data:    gin.H{"fields": verr.Fields},
			Meta:    utils.Meta{RequestID: c.GetString("request_id"), Timestamp: utils.NowISO()},
		})
	case errors.Is(err, utils.ErrProductNotFound):
		utils.Error(c, http.StatusNotFound, utils.ErrProductNotFound.Error(), "Product not found")
	case errors.Is(err, utils.ErrOperationInProgress):
		utils.Error(c, http.StatusConflict, utils.ErrOperationInProgress.Error(), "Another operation on this product is still running")
	case errors.Is(err, utils.ErrEnrichmentDisabled):
		utils.Error(c, http.StatusServiceUnavailable, utils.ErrEnrichmentDisabled.Error(), "Enrichment is unavailable, fill the audit fields manually")
	case errors.Is(err, utils.ErrEnrichmentFailed):
		utils.Error(c, http.StatusBadGateway, utils.ErrEnrichmentFailed.Error(), "Enrichment failed, try again later or fill the audit fields manually")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request")
	}
}
