package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"crypto-calls-dashboard/internal/cache"
	"crypto-calls-dashboard/internal/calls"

	"github.com/gin-gonic/gin"
)

// handleCreateCall ingests a new trade call submission
func (s *Server) handleCreateCall(c *gin.Context) {
	var draft calls.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	result, err := s.ingest.Submit(c.Request.Context(), draft)
	if err != nil {
		var verr calls.ValidationError
		if errors.As(err, &verr) {
			errorResponse(c, http.StatusUnprocessableEntity, verr.Msg)
			return
		}
		s.logger.Error().Err(err).Msg("failed to ingest trade call")
		errorResponse(c, http.StatusInternalServerError, "Failed to create trade call")
		return
	}

	if !result.Created {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"created": false,
			"id":      result.ID,
			"message": result.Message,
		})
		return
	}

	if s.cacheSvc != nil {
		s.cacheSvc.Delete(c.Request.Context(), cache.KeyStatsReport)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"created": true,
		"id":      result.ID,
	})
}

// handleListCalls lists trade calls, newest first
func (s *Server) handleListCalls(c *gin.Context) {
	status := calls.Status(c.Query("status"))
	switch status {
	case "", calls.StatusActive, calls.StatusResolved, calls.StatusExpired:
	default:
		errorResponse(c, http.StatusBadRequest, "Invalid status filter: "+string(status))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	list, err := s.repo.ListCalls(c.Request.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list trade calls")
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch trade calls")
		return
	}

	successResponse(c, list)
}

// handleStats serves the aggregated performance report, cached briefly in
// Redis to keep dashboards cheap
func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	if s.cacheSvc != nil {
		var cached calls.Report
		if err := s.cacheSvc.GetJSON(ctx, cache.KeyStatsReport, &cached); err == nil {
			successResponse(c, &cached)
			return
		}
	}

	report, err := s.aggregator.Stats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to aggregate stats")
		errorResponse(c, http.StatusInternalServerError, "Failed to compute statistics")
		return
	}

	if s.cacheSvc != nil {
		s.cacheSvc.Set(ctx, cache.KeyStatsReport, report, cache.StatsReportTTL)
	}

	successResponse(c, report)
}

// handleGetPrice serves the latest spot price for one symbol, cached for a
// few seconds so dashboard polling does not hammer the exchange
func (s *Server) handleGetPrice(c *gin.Context) {
	symbol := calls.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "Symbol is required")
		return
	}

	ctx := c.Request.Context()
	key := fmt.Sprintf(cache.KeyPriceFmt, symbol)

	if s.cacheSvc != nil {
		if v, err := s.cacheSvc.Get(ctx, key); err == nil {
			if price, perr := strconv.ParseFloat(v, 64); perr == nil {
				successResponse(c, gin.H{"symbol": symbol, "price": price})
				return
			}
		}
	}

	price, err := s.prices.GetPrice(ctx, symbol)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("price lookup failed")
		errorResponse(c, http.StatusBadGateway, "Failed to fetch price")
		return
	}

	if s.cacheSvc != nil {
		s.cacheSvc.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), cache.PriceTTL)
	}

	successResponse(c, gin.H{"symbol": symbol, "price": price})
}

// handleManualResolve runs one resolution tick on demand
func (s *Server) handleManualResolve(c *gin.Context) {
	result, err := s.resolver.ResolveTick(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("manual resolution tick failed")
		errorResponse(c, http.StatusInternalServerError, "Resolution tick failed")
		return
	}

	if s.cacheSvc != nil && (result.Resolved > 0 || result.Expired > 0) {
		s.cacheSvc.Delete(c.Request.Context(), cache.KeyStatsReport)
	}

	successResponse(c, result)
}
