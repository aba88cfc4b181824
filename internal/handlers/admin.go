package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/valyala/fasthttp"

	"verification-api/internal/config"
	"verification-api/internal/models"
	"verification-api/internal/services"
)

const defaultEntriesLimit = 50

type AdminHandler struct {
	keys *services.KeyService
	cfg  *config.Config
}

func NewAdminHandler(keys *services.KeyService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{keys: keys, cfg: cfg}
}

// CreateKey accepts a JSON body or the user_email and credits query parameters.
func (h *AdminHandler) CreateKey(ctx *fasthttp.RequestCtx) {
	var req models.CreateKeyRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "Invalid request format")
			return
		}
	} else {
		args := ctx.QueryArgs()
		req.Owner = string(args.Peek("user_email"))
		if raw := args.Peek("credits"); len(raw) > 0 {
			credits, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				writeError(ctx, fasthttp.StatusBadRequest, "credits must be an integer")
				return
			}
			req.Credits = &credits
		}
	}

	credits := h.cfg.DefaultAdminCredits
	if req.Credits != nil {
		credits = *req.Credits
	}

	secret, account, err := h.keys.Create(ctx, req.Owner, credits)
	if err != nil {
		writeServiceError(ctx, "AdminHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, models.CreateKeyResponse{
		Status:        "success",
		APIKey:        secret,
		AccountID:     account.ID,
		Owner:         account.Owner,
		Credits:       account.Balance,
		Verifications: account.Balance / h.cfg.CreditsPerVerification,
		Message:       "SAVE THIS KEY! It will not be shown again.",
	})
}

func (h *AdminHandler) Deactivate(ctx *fasthttp.RequestCtx) {
	h.setActive(ctx, false)
}

func (h *AdminHandler) Activate(ctx *fasthttp.RequestCtx) {
	h.setActive(ctx, true)
}

func (h *AdminHandler) setActive(ctx *fasthttp.RequestCtx, active bool) {
	id, _ := ctx.UserValue("id").(string)
	account, err := h.keys.SetActive(ctx, id, active)
	if err != nil {
		writeServiceError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, models.NewAccountResponse(account))
}

func (h *AdminHandler) Entries(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	limit := defaultEntriesLimit
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		parsed, err := strconv.Atoi(string(raw))
		if err != nil || parsed <= 0 {
			writeError(ctx, fasthttp.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.keys.Entries(ctx, id, limit)
	if err != nil {
		writeServiceError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, models.LedgerEntryListResponse{
		AccountID: id,
		Entries:   entries,
		Total:     len(entries),
	})
}
