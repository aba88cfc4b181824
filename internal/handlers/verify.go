package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
	"verification-api/internal/middleware"
	"verification-api/internal/models"
	"verification-api/internal/services"
	"verification-api/internal/verify"
)

type CompanyChecker interface {
	Check(ctx context.Context, companyName, website string) models.VerificationResult
	CheckAll(ctx context.Context, companies []models.CompanyVerifyRequest) []models.VerificationResult
}

type VerifyHandler struct {
	gate    *services.Gate
	checker CompanyChecker
	cfg     *config.Config
}

func NewVerifyHandler(gate *services.Gate, checker CompanyChecker, cfg *config.Config) *VerifyHandler {
	return &VerifyHandler{gate: gate, checker: checker, cfg: cfg}
}

// charge returns false after writing the response when the key is refused.
func (h *VerifyHandler) charge(ctx *fasthttp.RequestCtx, cost int64) bool {
	token, _ := middleware.BearerToken(ctx)
	account, err := h.gate.AuthorizeAndCharge(ctx, token, cost)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			paymentRequired(ctx, cost)
		} else {
			writeServiceError(ctx, "VerifyHandler", err)
		}
		return false
	}
	ctx.SetUserValue(middleware.CallerKey, account.ID)
	return true
}

func (h *VerifyHandler) Verify(ctx *fasthttp.RequestCtx) {
	var req models.CompanyVerifyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request format")
		return
	}
	if err := verify.Validate(req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	if !h.charge(ctx, h.cfg.CreditsPerVerification) {
		return
	}

	result := h.checker.Check(ctx, req.CompanyName, req.Website)
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// VerifyBatch charges for the whole batch up front, then checks every company
// concurrently.
func (h *VerifyHandler) VerifyBatch(ctx *fasthttp.RequestCtx) {
	var req models.BatchVerifyRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "Invalid request format")
		return
	}
	if len(req.Companies) == 0 {
		writeError(ctx, fasthttp.StatusBadRequest, "companies must not be empty")
		return
	}
	if len(req.Companies) > h.cfg.MaxBatchSize {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("at most %d companies per batch", h.cfg.MaxBatchSize))
		return
	}
	for i, company := range req.Companies {
		if err := verify.Validate(company); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("companies[%d]: %v", i, err))
			return
		}
	}

	if !h.charge(ctx, h.cfg.CreditsPerVerification*int64(len(req.Companies))) {
		return
	}

	results := h.checker.CheckAll(ctx, req.Companies)
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"status":         "success",
		"total_verified": len(results),
		"results":        results,
	})
}
