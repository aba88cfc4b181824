package handlers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
	"verification-api/internal/middleware"
	"verification-api/internal/services"
)

type Dependencies struct {
	Config     *config.Config
	Keys       *services.KeyService
	Gate       *services.Gate
	Settlement *services.SettlementService
	Checker    CompanyChecker
	Auth       *middleware.AuthMiddleware
}

func NewRouter(deps Dependencies) *router.Router {
	meta := NewMetaHandler(deps.Config)
	credits := NewCreditsHandler(deps.Gate, deps.Config)
	verifyHandler := NewVerifyHandler(deps.Gate, deps.Checker, deps.Config)
	admin := NewAdminHandler(deps.Keys, deps.Config)
	pay := NewPaymentHandler(deps.Settlement, deps.Config)

	r := router.New()
	handle := func(method, path string, h fasthttp.RequestHandler) {
		r.Handle(method, path, middleware.Logger(h))
	}
	adminOnly := deps.Auth.RequireAdmin

	handle(fasthttp.MethodGet, "/", meta.Root)
	handle(fasthttp.MethodGet, "/health", meta.Health)
	handle(fasthttp.MethodGet, "/pricing", meta.Pricing)
	handle(fasthttp.MethodGet, "/.well-known/x402", meta.X402)

	handle(fasthttp.MethodPost, "/verify", verifyHandler.Verify)
	handle(fasthttp.MethodPost, "/verify/batch", verifyHandler.VerifyBatch)
	handle(fasthttp.MethodGet, "/credits/check", credits.Check)

	handle(fasthttp.MethodPost, "/admin/keys", adminOnly(admin.CreateKey))
	handle(fasthttp.MethodPost, "/admin/create-api-key", adminOnly(admin.CreateKey))
	handle(fasthttp.MethodPost, "/admin/keys/{id}/deactivate", adminOnly(admin.Deactivate))
	handle(fasthttp.MethodPost, "/admin/keys/{id}/activate", adminOnly(admin.Activate))
	handle(fasthttp.MethodGet, "/admin/keys/{id}/entries", adminOnly(admin.Entries))

	handle(fasthttp.MethodPost, "/purchase", pay.Purchase)
	handle(fasthttp.MethodGet, "/payment/success", pay.Success)
	handle(fasthttp.MethodGet, "/payment/cancel", pay.Cancel)

	return r
}
