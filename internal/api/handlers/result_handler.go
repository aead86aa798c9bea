package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skulane/priceflow/internal/domain"
	"github.com/skulane/priceflow/internal/service"
)

// ResultHandler exposes the three engine output tables read-only.
type ResultHandler struct {
	service *service.ResultService
}

func NewResultHandler(service *service.ResultService) *ResultHandler {
	return &ResultHandler{service: service}
}

func (h *ResultHandler) GetSummary(c *gin.Context) {
	filter := parseFilter(c)

	results, err := h.service.GetSummary(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if results == nil {
		results = []domain.OptimizationResult{}
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

func (h *ResultHandler) GetTrajectory(c *gin.Context) {
	filter := parseFilter(c)

	points, err := h.service.GetTrajectory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if points == nil {
		points = []domain.TrajectoryPoint{}
	}

	c.JSON(http.StatusOK, gin.H{"data": points})
}

func (h *ResultHandler) GetStockouts(c *gin.Context) {
	filter := parseFilter(c)

	flags, total, err := h.service.GetStockouts(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if flags == nil {
		flags = []domain.StockoutFlag{}
	}

	c.JSON(http.StatusOK, gin.H{"data": flags, "total": total})
}

func parseFilter(c *gin.Context) domain.ResultFilter {
	filter := domain.ResultFilter{
		SKUs:       splitParam(c.Query("sku")),
		Warehouses: splitParam(c.Query("warehouse_code")),
		DateFrom:   c.Query("date_from"),
		DateTo:     c.Query("date_to"),
	}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
