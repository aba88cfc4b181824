package handlers

import (
	"context"
	"strconv"

	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
	"verification-api/internal/models"
	"verification-api/internal/services"
)

const defaultPurchaseCredits = 100

type PaymentHandler struct {
	settlement *services.SettlementService
	cfg        *config.Config
}

func NewPaymentHandler(settlement *services.SettlementService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{settlement: settlement, cfg: cfg}
}

func (h *PaymentHandler) Purchase(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	credits := int64(defaultPurchaseCredits)
	if raw := args.Peek("credits"); len(raw) > 0 {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "credits must be an integer")
			return
		}
		credits = parsed
	}

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.PaymentTimeout)
	defer cancel()

	session, err := h.settlement.CreateSession(callCtx, credits, string(args.Peek("email")))
	if err != nil {
		writeServiceError(ctx, "PaymentHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, models.PurchaseResponse{
		CheckoutURL:   session.URL,
		SessionID:     session.ID,
		TotalAmount:   float64(session.AmountTotal) / 100,
		Credits:       credits,
		Verifications: credits / h.cfg.CreditsPerVerification,
	})
}

// Success settles the session and shows the new key exactly once.
func (h *PaymentHandler) Success(ctx *fasthttp.RequestCtx) {
	sessionID := string(ctx.QueryArgs().Peek("session_id"))
	if sessionID == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "session_id is required")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, h.cfg.PaymentTimeout)
	defer cancel()

	result, err := h.settlement.Settle(callCtx, sessionID)
	if err != nil {
		writeServiceError(ctx, "PaymentHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, models.PaymentSuccessResponse{
		Status:                 "success",
		Message:                "SAVE THIS API KEY! It will not be shown again.",
		APIKey:                 result.Secret,
		Credits:                result.Credits,
		VerificationsAvailable: result.Credits / h.cfg.CreditsPerVerification,
		Owner:                  result.Owner,
		AmountPaid:             formatUSD(result.AmountTotal),
		Instructions: map[string]string{
			"step_1":  "Copy the api_key above",
			"step_2":  "Use it in the Authorization header",
			"example": "Authorization: Bearer " + result.Secret,
		},
	})
}

func (h *PaymentHandler) Cancel(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":  "cancelled",
		"message": "Payment cancelled",
	})
}
