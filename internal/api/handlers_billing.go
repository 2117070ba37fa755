package api

import (
	"io"
	"net/http"
	"time"

	"crypto-calls-dashboard/internal/billing"

	"github.com/gin-gonic/gin"
)

// handleStripeCheckout starts a card checkout for a plan
func (s *Server) handleStripeCheckout(c *gin.Context) {
	if s.stripe == nil || !s.stripe.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "Card payments are not configured")
		return
	}

	var req billing.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := s.stripe.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", req.PlanKey).Msg("stripe checkout failed")
		errorResponse(c, http.StatusBadGateway, "Failed to create checkout session")
		return
	}

	successResponse(c, resp)
}

// handleCryptoCheckout starts a crypto invoice for a plan
func (s *Server) handleCryptoCheckout(c *gin.Context) {
	if s.nowPayments == nil || !s.nowPayments.IsConfigured() {
		errorResponse(c, http.StatusServiceUnavailable, "Crypto payments are not configured")
		return
	}

	var req billing.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := s.nowPayments.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", req.PlanKey).Msg("crypto checkout failed")
		errorResponse(c, http.StatusBadGateway, "Failed to create crypto invoice")
		return
	}

	successResponse(c, resp)
}

// handleStripeWebhook receives Stripe event deliveries
func (s *Server) handleStripeWebhook(c *gin.Context) {
	if s.stripe == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Card payments are not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Failed to read webhook body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := s.stripe.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		s.logger.Warn().Err(err).Msg("stripe webhook rejected")
		errorResponse(c, http.StatusBadRequest, "Webhook rejected")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleNOWPaymentsIPN receives NOWPayments payment notifications
func (s *Server) handleNOWPaymentsIPN(c *gin.Context) {
	if s.nowPayments == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Crypto payments are not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Failed to read IPN body")
		return
	}

	signature := c.GetHeader("x-nowpayments-sig")
	if err := s.nowPayments.HandleIPN(c.Request.Context(), payload, signature); err != nil {
		s.logger.Warn().Err(err).Msg("nowpayments IPN rejected")
		errorResponse(c, http.StatusBadRequest, "IPN rejected")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleGetSubscription reports a customer's subscription state
func (s *Server) handleGetSubscription(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		errorResponse(c, http.StatusBadRequest, "email query parameter is required")
		return
	}

	sub, err := s.repo.GetSubscription(c.Request.Context(), email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch subscription")
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch subscription")
		return
	}
	if sub == nil {
		errorResponse(c, http.StatusNotFound, "No subscription for this email")
		return
	}

	active, err := s.repo.HasActiveSubscription(c.Request.Context(), email, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check subscription state")
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch subscription")
		return
	}

	successResponse(c, gin.H{"subscription": sub, "active": active})
}

// handleCancelSubscription cancels a customer's subscription (admin only)
func (s *Server) handleCancelSubscription(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		errorResponse(c, http.StatusBadRequest, "email query parameter is required")
		return
	}

	if err := s.repo.CancelSubscription(c.Request.Context(), email); err != nil {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}

	successResponse(c, gin.H{"email": email, "cancelled": true})
}

// handleListPayments lists recent payments for the admin view
func (s *Server) handleListPayments(c *gin.Context) {
	payments, err := s.repo.ListPayments(c.Request.Context(), 100, 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list payments")
		errorResponse(c, http.StatusInternalServerError, "Failed to fetch payments")
		return
	}

	successResponse(c, payments)
}
