package handlers

import (
	"errors"

	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
	"verification-api/internal/middleware"
	"verification-api/internal/models"
	"verification-api/internal/services"
)

type CreditsHandler struct {
	gate *services.Gate
	cfg  *config.Config
}

func NewCreditsHandler(gate *services.Gate, cfg *config.Config) *CreditsHandler {
	return &CreditsHandler{gate: gate, cfg: cfg}
}

func (h *CreditsHandler) Check(ctx *fasthttp.RequestCtx) {
	token, ok := middleware.BearerToken(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "Invalid authorization header")
		return
	}

	remaining, err := h.gate.Remaining(ctx, token)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			writeError(ctx, fasthttp.StatusUnauthorized, "Invalid API key")
			return
		}
		writeServiceError(ctx, "CreditsHandler", err)
		return
	}

	status := "active"
	if remaining < h.cfg.CreditsPerVerification {
		status = "low_credits"
	}
	writeJSON(ctx, fasthttp.StatusOK, models.CreditsResponse{
		CreditsRemaining:       remaining,
		VerificationsAvailable: remaining / h.cfg.CreditsPerVerification,
		Status:                 status,
	})
}
