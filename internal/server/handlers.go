package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"QuoteSentinel/internal/alert"
	"QuoteSentinel/internal/cache"
	"QuoteSentinel/internal/collector"
	"QuoteSentinel/internal/model"
	"QuoteSentinel/internal/quotes"
	"QuoteSentinel/internal/strategy"
)

const maxHistoryDays = 365

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	return model.NormalizeSymbols(strings.Split(raw, ","))
}

func parseDays(c *gin.Context) (int, bool) {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(collector.DefaultHistoryDays)))
	if err != nil || days <= 0 || days > maxHistoryDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return 0, false
	}
	return days, true
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, quotes.ErrNoSymbols), alert.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, alert.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cache.ErrKeyCollision):
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("cache integrity failure")
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GET /api/quotes?symbols=soja,milho&fresh=true
func (s *Server) getQuotes(c *gin.Context) {
	symbols := splitSymbols(c.Query("symbols"))
	if len(symbols) == 0 && s.cfg.DefaultSymbols != nil {
		symbols = s.cfg.DefaultSymbols()
	}

	get := s.cfg.Quotes.Get
	if fresh, _ := strconv.ParseBool(c.Query("fresh")); fresh {
		get = s.cfg.Quotes.GetFresh
	}
	snap, err := get(c.Request.Context(), symbols)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /api/history/:symbol?days=90
func (s *Server) getHistory(c *gin.Context) {
	days, ok := parseDays(c)
	if !ok {
		return
	}
	series := s.cfg.Quotes.History(c.Request.Context(), c.Param("symbol"), days)
	if series.Points == nil {
		series.Points = []model.PricePoint{}
	}
	c.JSON(http.StatusOK, series)
}

// GET /api/indicators/:symbol?days=90
func (s *Server) getIndicators(c *gin.Context) {
	days, ok := parseDays(c)
	if !ok {
		return
	}
	r := s.cfg.Quotes.Indicators(c.Request.Context(), c.Param("symbol"), days)
	resp := gin.H{"data": r, "insufficient_data": !r.Sufficient()}
	if a, ok := strategy.Evaluate(r); ok {
		resp["assessment"] = a
	}
	c.JSON(http.StatusOK, resp)
}

type createAlertRequest struct {
	OwnerID   string `json:"owner_id" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	Condition string `json:"condition" binding:"required"`
	// Pointer so that an absent or null threshold is rejected rather
	// than read as zero.
	ThresholdPrice *float64 `json:"threshold_price" binding:"required"`
	Description    string   `json:"description"`
}

func (s *Server) alertsEnabled(c *gin.Context) bool {
	if s.cfg.Alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alerts are disabled"})
		return false
	}
	return true
}

// GET /api/alerts?owner=42
func (s *Server) listAlerts(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.cfg.Alerts.List(c.Query("owner"))})
}

// POST /api/alerts
func (s *Server) createAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ThresholdPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threshold_price is required"})
		return
	}
	a, err := s.cfg.Alerts.Create(c.Request.Context(), req.OwnerID, req.Symbol, req.Condition, *req.ThresholdPrice, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": a})
}

// GET /api/alerts/:id
func (s *Server) getAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}
	a, err := s.cfg.Alerts.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

// POST /api/alerts/:id/toggle
func (s *Server) toggleAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}
	a, err := s.cfg.Alerts.ToggleEnabled(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

// DELETE /api/alerts/:id
func (s *Server) deleteAlert(c *gin.Context) {
	if !s.alertsEnabled(c) {
		return
	}
	if err := s.cfg.Alerts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /healthz
func (s *Server) health(c *gin.Context) {
	if s.cfg.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}
	report, healthy := s.cfg.Health.Report()
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
