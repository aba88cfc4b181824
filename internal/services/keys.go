package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"verification-api/internal/cache"
	"verification-api/internal/events"
	"verification-api/internal/models"
	"verification-api/internal/repository"
	"verification-api/internal/utils"
)

const (
	SecretPrefix = "cvapi_"

	secretBytes   = 32
	encodedLength = 43
)

var (
	ErrInvalidOwner   = errors.New("owner is required")
	ErrInvalidCredits = errors.New("credits must be a positive integer")
)

// BalanceCache is the part of the Redis cache the services rely on.
// SetBalance must refuse a snapshot older than the one it holds.
type BalanceCache interface {
	SetBalance(ctx context.Context, key string, snapshot cache.BalanceSnapshot, ttl time.Duration) (bool, error)
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// GenerateSecret returns a fresh bearer key: the prefix followed by 32 random
// bytes in unpadded base64url.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Digest is the lookup handle stored in place of the secret.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func ValidFormat(secret string) bool {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return false
	}
	body := secret[len(SecretPrefix):]
	if len(body) != encodedLength {
		return false
	}
	for _, c := range body {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// newAccount builds an active account for a freshly generated secret. The
// plaintext is returned to the caller and never stored.
func newAccount(owner string, credits int64) (string, *models.Account, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return "", nil, err
	}
	return secret, &models.Account{
		ID:        uuid.New().String(),
		KeyDigest: Digest(secret),
		Owner:     owner,
		Balance:   credits,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type KeyService struct {
	store  repository.AccountStore
	cache  BalanceCache
	events *EventDispatcher
}

// NewKeyService accepts a nil cache and a nil dispatcher.
func NewKeyService(store repository.AccountStore, balanceCache BalanceCache, dispatcher *EventDispatcher) *KeyService {
	return &KeyService{store: store, cache: balanceCache, events: dispatcher}
}

// Create issues a key with an initial grant and returns the plaintext once.
func (s *KeyService) Create(ctx context.Context, owner string, credits int64) (string, *models.Account, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", nil, ErrInvalidOwner
	}
	if credits < 0 {
		return "", nil, ErrInvalidCredits
	}

	secret, account, err := newAccount(owner, credits)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.Create(ctx, account, models.EntryReasonGrant); err != nil {
		utils.LogError("KeyService", "Failed to store new key", err)
		return "", nil, fmt.Errorf("create key: %w", err)
	}

	utils.LogSuccess("KeyService", "Issued key %s for %s with %d credits", account.ID, utils.MaskEmail(owner), credits)
	s.events.Dispatch(events.RoutingKeyIssued, events.KeyIssued{
		AccountID: account.ID,
		Owner:     owner,
		Credits:   credits,
		Source:    models.EntryReasonGrant,
		Timestamp: account.CreatedAt,
	})
	return secret, account, nil
}

// Lookup returns repository.ErrAccountNotFound for malformed or unknown keys.
func (s *KeyService) Lookup(ctx context.Context, secret string) (*models.Account, error) {
	if !ValidFormat(secret) {
		return nil, repository.ErrAccountNotFound
	}
	return s.store.GetByDigest(ctx, Digest(secret))
}

func (s *KeyService) Update(ctx context.Context, secret, reason string, mutate repository.MutateFunc) (*models.Account, error) {
	if !ValidFormat(secret) {
		return nil, repository.ErrAccountNotFound
	}
	return s.store.Update(ctx, Digest(secret), reason, mutate)
}

func (s *KeyService) SetActive(ctx context.Context, accountID string, active bool) (*models.Account, error) {
	account, err := s.store.SetActive(ctx, accountID, active)
	if err != nil {
		return nil, err
	}

	// A plain delete would let an in-flight read put the old flag back.
	rememberBalance(ctx, s.cache, "KeyService", account)

	utils.LogInfo("KeyService", "Key %s active=%t", account.ID, active)
	s.events.Dispatch(events.RoutingKeyStatusChanged, events.KeyStatusChanged{
		AccountID: account.ID,
		Active:    active,
		Timestamp: time.Now().UTC(),
	})
	return account, nil
}

func (s *KeyService) Entries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if _, err := s.store.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, accountID, limit)
}
