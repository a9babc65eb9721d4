package location

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_alert_system/internal/models"
)

// HistoryCapacity - емкость кольцевого буфера координат одного устройства
const HistoryCapacity = 10

// Cache хранит последние координаты устройства, старые вытесняются первыми
type Cache interface {
	Append(ctx context.Context, deviceID string, sample models.CachedLocationSample) error
	Recent(ctx context.Context, deviceID string) ([]models.CachedLocationSample, error)
}

// MemoryCache - кольцевой буфер в памяти процесса
type MemoryCache struct {
	mu      sync.Mutex
	devices map[string]*ring
}

type ring struct {
	buf   [HistoryCapacity]models.CachedLocationSample
	start int
	size  int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{devices: make(map[string]*ring)}
}

func (c *MemoryCache) Append(_ context.Context, deviceID string, sample models.CachedLocationSample) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.devices[deviceID]
	if !ok {
		r = &ring{}
		c.devices[deviceID] = r
	}
	if r.size < HistoryCapacity {
		r.buf[(r.start+r.size)%HistoryCapacity] = sample
		r.size++
		return nil
	}
	r.buf[r.start] = sample
	r.start = (r.start + 1) % HistoryCapacity
	return nil
}

// Recent возвращает записи от старой к новой
func (c *MemoryCache) Recent(_ context.Context, deviceID string) ([]models.CachedLocationSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.devices[deviceID]
	if !ok {
		return []models.CachedLocationSample{}, nil
	}
	out := make([]models.CachedLocationSample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%HistoryCapacity]
	}
	return out, nil
}

// RedisCache хранит буфер в списке Redis, обрезая его до HistoryCapacity
type RedisCache struct {
	redisClient *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{redisClient: client}
}

func cacheKey(deviceID string) string {
	return fmt.Sprintf("location_cache:%s", deviceID)
}

func (c *RedisCache) Append(ctx context.Context, deviceID string, sample models.CachedLocationSample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal location sample: %w", err)
	}

	key := cacheKey(deviceID)
	pipe := c.redisClient.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -HistoryCapacity, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append location sample to Redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Recent(ctx context.Context, deviceID string) ([]models.CachedLocationSample, error) {
	items, err := c.redisClient.LRange(ctx, cacheKey(deviceID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read location samples from Redis: %w", err)
	}

	samples := make([]models.CachedLocationSample, 0, len(items))
	for _, item := range items {
		var s models.CachedLocationSample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal location sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
