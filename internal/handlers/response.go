package handlers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"

	"verification-api/internal/payment"
	"verification-api/internal/repository"
	"verification-api/internal/services"
	"verification-api/internal/utils"
)

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		utils.LogError("Handlers", "Failed to encode response", err)
	}
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, map[string]string{"error": message})
}

// paymentRequired is the single body for every refused key, whether unknown,
// inactive or short of credits.
func paymentRequired(ctx *fasthttp.RequestCtx, cost int64) {
	writeJSON(ctx, fasthttp.StatusPaymentRequired, map[string]interface{}{
		"error":            "Payment required",
		"message":          "Invalid API key or insufficient credits",
		"credits_required": cost,
		"get_credits":      "/purchase",
	})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func writeServiceError(ctx *fasthttp.RequestCtx, component string, err error) {
	switch {
	case errors.Is(err, services.ErrAlreadySettled):
		writeError(ctx, fasthttp.StatusConflict, "Payment session already settled")
	case errors.Is(err, services.ErrPaymentIncomplete):
		writeError(ctx, fasthttp.StatusBadRequest, "Payment not completed")
	case errors.Is(err, services.ErrInvalidCredits),
		errors.Is(err, services.ErrCreditsOutOfRange),
		errors.Is(err, services.ErrInvalidOwner):
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrSessionNotFound):
		writeError(ctx, fasthttp.StatusBadRequest, "Unknown payment session")
	case errors.Is(err, payment.ErrPaymentRejected):
		writeError(ctx, fasthttp.StatusBadRequest, "Payment provider rejected the request")
	case errors.Is(err, payment.ErrPaymentUnavailable):
		writeError(ctx, fasthttp.StatusServiceUnavailable, "Payment provider unavailable, try again")
	case errors.Is(err, repository.ErrAccountNotFound):
		writeError(ctx, fasthttp.StatusNotFound, "API key not found")
	default:
		utils.LogError(component, "Request failed", err)
		writeError(ctx, fasthttp.StatusInternalServerError, "Internal server error")
	}
}

func formatUSD(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
