package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"verification-api/internal/utils"
)

const (
	AdminHeader = "X-Admin-Secret"

	// CallerKey holds who made the request: an account id, "admin" or "anonymous".
	CallerKey = "caller"
)

// BearerToken extracts the key from "Authorization: Bearer <key>".
func BearerToken(ctx *fasthttp.RequestCtx) (string, bool) {
	header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

type AuthMiddleware struct {
	adminHash []byte
}

// NewAuthMiddleware keeps only a bcrypt hash of the admin secret. The secret
// is pre-hashed with SHA-256 so secrets longer than bcrypt's 72 bytes still
// compare exactly.
func NewAuthMiddleware(adminSecret string, cost int) (*AuthMiddleware, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(adminSecret), cost)
	if err != nil {
		return nil, err
	}
	utils.LogSuccess("Middleware", "Admin authorization initialized")
	return &AuthMiddleware{adminHash: hash}, nil
}

func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}

func (m *AuthMiddleware) RequireAdmin(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		supplied := string(ctx.Request.Header.Peek(AdminHeader))
		if supplied == "" || bcrypt.CompareHashAndPassword(m.adminHash, prehash(supplied)) != nil {
			utils.LogWarning("Middleware", "Rejected admin call to %s", ctx.Path())
			ctx.SetStatusCode(fasthttp.StatusForbidden)
			ctx.SetContentType("application/json")
			_ = json.NewEncoder(ctx).Encode(map[string]string{"error": "Forbidden"})
			return
		}

		ctx.SetUserValue(CallerKey, "admin")
		next(ctx)
	}
}

// Logger writes one request line and one response line per call.
func Logger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		startTime := time.Now()
		next(ctx)

		caller, ok := ctx.UserValue(CallerKey).(string)
		if !ok {
			caller = "anonymous"
		}
		path := string(ctx.Path())
		utils.LogRequest(string(ctx.Method()), path, caller)
		utils.LogResponse(path, ctx.Response.StatusCode(), time.Since(startTime))
	}
}
