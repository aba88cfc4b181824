package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"verification-api/internal/cache"
	"verification-api/internal/config"
	"verification-api/internal/models"
	"verification-api/internal/payment"
	"verification-api/internal/repository"
)

// countingStore records how often the gate reaches the store.
type countingStore struct {
	*repository.MemoryStore
	lookups int32
	updates int32
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: repository.NewMemoryStore()}
}

func (s *countingStore) GetByDigest(ctx context.Context, digest string) (*models.Account, error) {
	atomic.AddInt32(&s.lookups, 1)
	return s.MemoryStore.GetByDigest(ctx, digest)
}

func (s *countingStore) Update(ctx context.Context, digest, reason string, mutate repository.MutateFunc) (*models.Account, error) {
	atomic.AddInt32(&s.updates, 1)
	return s.MemoryStore.Update(ctx, digest, reason, mutate)
}

func (s *countingStore) calls() int32 {
	return atomic.LoadInt32(&s.lookups) + atomic.LoadInt32(&s.updates)
}

// brokenStore fails every read and write the way a lost database would.
type brokenStore struct {
	*repository.MemoryStore
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (brokenStore) GetByDigest(context.Context, string) (*models.Account, error) {
	return nil, fmt.Errorf("get account: %w: %w", repository.ErrStoreUnavailable, errConnRefused)
}

func (brokenStore) Update(context.Context, string, string, repository.MutateFunc) (*models.Account, error) {
	return nil, fmt.Errorf("update account: %w: %w", repository.ErrStoreUnavailable, errConnRefused)
}

// interleavingStore runs between once, right after the first GetByDigest has
// read the record and before the caller sees it.
type interleavingStore struct {
	*repository.MemoryStore
	once    sync.Once
	between func()
}

func (s *interleavingStore) GetByDigest(ctx context.Context, digest string) (*models.Account, error) {
	account, err := s.MemoryStore.GetByDigest(ctx, digest)
	if s.between != nil {
		s.once.Do(s.between)
	}
	return account, err
}

// memoryCache mirrors the version check of the Redis script.
type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) SetBalance(_ context.Context, key string, snapshot cache.BalanceSnapshot, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet {
		return false, errors.New("redis: connection pool timeout")
	}
	if current, ok := c.data[key]; ok {
		var stored cache.BalanceSnapshot
		if err := json.Unmarshal(current, &stored); err == nil && stored.Version >= snapshot.Version {
			return false, nil
		}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, err
	}
	c.data[key] = data
	return true, nil
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return errors.New("redis: connection pool timeout")
	}
	data, ok := c.data[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
	}
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	outcomes map[string]*payment.Outcome
	err      error
	created  []payment.SessionRequest
	resolves int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{outcomes: make(map[string]*payment.Outcome)}
}

func (p *fakeProvider) paid(sessionID, credits, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes[sessionID] = &payment.Outcome{
		SessionID:   sessionID,
		Paid:        true,
		AmountTotal: 500,
		PayerEmail:  email,
		Metadata:    map[string]string{payment.MetadataCredits: credits},
	}
}

func (p *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	return &payment.Session{
		ID:          id,
		URL:         "https://checkout.stripe.com/c/pay/" + id,
		AmountTotal: req.UnitAmountCents * req.Quantity,
	}, nil
}

func (p *fakeProvider) ResolveSession(_ context.Context, sessionID string) (*payment.Outcome, error) {
	atomic.AddInt32(&p.resolves, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	outcome, ok := p.outcomes[sessionID]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	copied := *outcome
	return &copied, nil
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:                "http://localhost:8000",
		StoreDriver:            config.StoreDriverMemory,
		AdminSecret:            "admin-secret",
		CreditsPerVerification: 10,
		PricePerCreditCents:    1,
		MinPurchaseCredits:     10,
		MaxPurchaseCredits:     10000,
		DefaultAdminCredits:    100,
		MaxBatchSize:           10,
		PaymentTimeout:         time.Second,
		VerifyTimeout:          time.Second,
		WorkerCount:            1,
		WorkerQueueSize:        10,
	}
}
