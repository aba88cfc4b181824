package handlers

import (
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
)

const apiVersion = "2.0.0"

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

func (h *MetaHandler) Root(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"message":  "Company Verification API",
		"version":  apiVersion,
		"security": "API key authentication with prepaid credits",
		"endpoints": map[string]string{
			"verify":   "POST /verify",
			"batch":    "POST /verify/batch",
			"health":   "GET /health",
			"credits":  "GET /credits/check",
			"purchase": "POST /purchase",
			"pricing":  "GET /pricing",
		},
	})
}

func (h *MetaHandler) Health(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
	})
}

func (h *MetaHandler) verificationPrice() int64 {
	return h.cfg.CreditsPerVerification * h.cfg.PricePerCreditCents
}

func (h *MetaHandler) Pricing(ctx *fasthttp.RequestCtx) {
	single := fmt.Sprintf("%s (%d credits)", formatUSD(h.verificationPrice()), h.cfg.CreditsPerVerification)

	bulk := make(map[string]string)
	for _, credits := range []int64{100, 1000, 10000} {
		if credits < h.cfg.MinPurchaseCredits || credits > h.cfg.MaxPurchaseCredits {
			continue
		}
		bulk[fmt.Sprintf("%d_credits", credits)] = formatUSD(credits * h.cfg.PricePerCreditCents)
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"single_verification":  single,
		"batch_verification":   formatUSD(h.verificationPrice()) + " per company",
		"credits_per_check":    h.cfg.CreditsPerVerification,
		"price_per_credit":     formatUSD(h.cfg.PricePerCreditCents),
		"min_purchase_credits": h.cfg.MinPurchaseCredits,
		"max_purchase_credits": h.cfg.MaxPurchaseCredits,
		"bulk_pricing":         bulk,
	})
}

// X402 advertises how to pay for the API.
func (h *MetaHandler) X402(ctx *fasthttp.RequestCtx) {
	price := h.verificationPrice()
	writeJSON(ctx, fasthttp.StatusPaymentRequired, map[string]interface{}{
		"version": "1.0.0",
		"accepts": []string{"stripe"},
		"price": map[string]string{
			"amount":   fmt.Sprintf("%d.%02d", price/100, price%100),
			"currency": "USD",
		},
		"purchase_url": h.cfg.BaseURL + "/purchase",
	})
}
