package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisCache{client: client}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetJSON returns redis.Nil on a miss.
func (r *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

const BalanceTTL = 60 * time.Second

// BalanceSnapshot is what gets cached for the remaining-credits read path.
// Version is the account version the snapshot was taken at.
type BalanceSnapshot struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Active    bool   `json:"active"`
	Version   int64  `json:"version"`
}

// setIfNewer writes ARGV[1] unless the stored snapshot already carries a
// version at or above ARGV[2]. Returns 1 when it wrote.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' then
    local stored = tonumber(decoded['version'])
    if stored and stored >= tonumber(ARGV[2]) then
      return 0
    end
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// SetBalance stores the snapshot only if it is newer than the cached one, so
// a writer that read the store earlier cannot roll the cache back.
func (r *RedisCache) SetBalance(ctx context.Context, key string, snapshot BalanceSnapshot, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, err
	}
	written, err := setIfNewer.Run(ctx, r.client, []string{key}, data, snapshot.Version, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

func BalanceKey(keyDigest string) string {
	return "credits:balance:" + keyDigest
}

// IsMiss reports whether err is a plain cache miss rather than a failure.
func IsMiss(err error) bool {
	return err == redis.Nil
}
