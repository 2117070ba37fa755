package api

import (
	"crypto/subtle"
	"net/http"

	"crypto-calls-dashboard/internal/calls"
	"crypto-calls-dashboard/internal/events"

	"github.com/gin-gonic/gin"
)

// signalPayload is the body TradingView alerts post to the signal hook
type signalPayload struct {
	Token   string  `json:"token"`
	Symbol  string  `json:"symbol" binding:"required"`
	Side    string  `json:"side" binding:"required"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}

// handleSignalWebhook accepts TradingView alert posts and fans them out to
// the chat notifiers. The shared token comes either from the body or the
// X-Signal-Token header.
func (s *Server) handleSignalWebhook(c *gin.Context) {
	var payload signalPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	token := payload.Token
	if token == "" {
		token = c.GetHeader("X-Signal-Token")
	}
	if s.config.SignalToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.config.SignalToken)) != 1 {
		errorResponse(c, http.StatusUnauthorized, "Invalid signal token")
		return
	}

	symbol := calls.NormalizeSymbol(payload.Symbol)

	if s.eventBus != nil {
		s.eventBus.PublishData(events.EventSignalReceived, map[string]interface{}{
			"symbol":  symbol,
			"side":    payload.Side,
			"price":   payload.Price,
			"message": payload.Message,
		})
	}

	if s.notifier != nil {
		if err := s.notifier.SendSignal(symbol, payload.Side, payload.Message, payload.Price); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to forward signal to notifiers")
		}
	}

	successResponse(c, gin.H{"symbol": symbol, "forwarded": true})
}
