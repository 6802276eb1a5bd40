package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/roomservice/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned when another request holds the order lock.
var ErrLocked = errors.New("order is locked by another request")

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// NewRedisRepositoryWithClient wraps an existing client.
func NewRedisRepositoryWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{client: client, config: cfg}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// LockOrder takes the per-order mutation lock. The returned func releases
// it; ErrLocked means someone else holds it.
func (r *RedisRepository) LockOrder(ctx context.Context, orderID string) (func(), error) {
	key := fmt.Sprintf("lock:order:%s", orderID)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.config.LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// release even if the request context is already done
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
	}, nil
}

// OrderStatusCache is what guests poll.
type OrderStatusCache struct {
	ID          string    `json:"id"`
	HotelID     string    `json:"hotel_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func orderStatusKey(orderID string) string {
	return fmt.Sprintf("order:%s:status", orderID)
}

func (r *RedisRepository) CacheOrderStatus(ctx context.Context, entry *OrderStatusCache) error {
	return r.SetJSON(ctx, orderStatusKey(entry.ID), entry, r.config.CacheTTL)
}

// GetOrderStatusCache returns ErrNotFound on a cache miss.
func (r *RedisRepository) GetOrderStatusCache(ctx context.Context, orderID string) (*OrderStatusCache, error) {
	var entry OrderStatusCache
	if err := r.GetJSON(ctx, orderStatusKey(orderID), &entry); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}
