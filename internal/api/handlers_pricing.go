package api

import (
	"net/http"
	"strings"

	"crypto-calls-dashboard/internal/database"
	"crypto-calls-dashboard/internal/events"

	"github.com/gin-gonic/gin"
)

// handleListPricing serves the public pricing table
func (s *Server) handleListPricing(c *gin.Context) {
	plans, err := s.repo.ListPricingPlans(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list pricing plans")
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch pricing")
		return
	}

	successResponse(c, plans)
}

type pricingRequest struct {
	Name       string  `json:"name" binding:"required"`
	PriceUSD   float64 `json:"price_usd" binding:"required,gt=0"`
	PeriodDays int     `json:"period_days" binding:"required,gt=0"`
}

// handleUpsertPricing creates or updates a plan (admin only)
func (s *Server) handleUpsertPricing(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	if key == "" {
		errorResponse(c, http.StatusBadRequest, "Plan key is required")
		return
	}

	var req pricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	plan := &database.PricingPlan{
		PlanKey:    key,
		Name:       req.Name,
		PriceUSD:   req.PriceUSD,
		PeriodDays: req.PeriodDays,
	}
	if err := s.repo.UpsertPricingPlan(c.Request.Context(), plan); err != nil {
		s.logger.Error().Err(err).Str("plan", key).Msg("failed to upsert pricing plan")
		errorResponse(c, http.StatusInternalServerError, "Failed to save pricing plan")
		return
	}

	if s.eventBus != nil {
		s.eventBus.PublishData(events.EventPricingUpdated, map[string]interface{}{
			"plan_key":  plan.PlanKey,
			"price_usd": plan.PriceUSD,
		})
	}

	successResponse(c, plan)
}

// handleDeletePricing removes a plan (admin only)
func (s *Server) handleDeletePricing(c *gin.Context) {
	key := strings.ToLower(strings.TrimSpace(c.Param("key")))
	if key == "" {
		errorResponse(c, http.StatusBadRequest, "Plan key is required")
		return
	}

	if err := s.repo.DeletePricingPlan(c.Request.Context(), key); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}

	if s.eventBus != nil {
		s.eventBus.PublishData(events.EventPricingUpdated, map[string]interface{}{
			"plan_key": key,
			"deleted":  true,
		})
	}

	successResponse(c, gin.H{"plan_key": key, "deleted": true})
}
