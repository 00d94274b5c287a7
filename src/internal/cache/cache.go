package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache interface defines caching operations
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisCache implements Cache interface using Redis
type RedisCache struct {
	client *redis.Client
}

// MemoryCache implements Cache interface using in-memory storage (fallback)
type MemoryCache struct {
	data map[string]cacheItem
	mu   sync.RWMutex
}

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// CacheManager manages cache instances with fallback
type CacheManager struct {
	primary   Cache
	fallback  Cache
	enabled   bool
	keyPrefix string
	ttl       time.Duration
}

// NewCacheManager creates a new cache manager. Redis is used when enabled and
// reachable; the in-memory cache always backs it up.
func NewCacheManager(cfg *viper.Viper) *CacheManager {
	manager := &CacheManager{
		enabled:   cfg.GetBool("cache.enabled"),
		keyPrefix: cfg.GetString("cache.key_prefix"),
		ttl:       cfg.GetDuration("cache.ttl"),
		fallback:  NewMemoryCache(),
	}

	if manager.keyPrefix == "" {
		manager.keyPrefix = "casrecipes:"
	}
	if manager.ttl <= 0 {
		manager.ttl = TTLShort
	}

	if manager.enabled && cfg.GetBool("redis.enabled") {
		if redisCache, err := NewRedisCache(cfg); err == nil {
			manager.primary = redisCache
		}
	}

	return manager
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg *viper.Viper) (*RedisCache, error) {
	addr := cfg.GetString("redis.addr")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.GetString("redis.password"),
		DB:           cfg.GetInt("redis.db"),
		DialTimeout:  time.Second * 5,
		ReadTimeout:  time.Second * 3,
		WriteTimeout: time.Second * 3,
		PoolSize:     10,
		PoolTimeout:  time.Second * 4,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewMemoryCache creates a new in-memory cache instance
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]cacheItem)}
}

// CacheManager methods

func (cm *CacheManager) key(key string) string {
	return cm.keyPrefix + key
}

// Enabled reports whether cached reads are served
func (cm *CacheManager) Enabled() bool {
	return cm.enabled
}

// TTL is the default lifetime of cached listings
func (cm *CacheManager) TTL() time.Duration {
	return cm.ttl
}

func (cm *CacheManager) Get(ctx context.Context, key string) (string, error) {
	if !cm.enabled {
		return "", ErrMiss
	}

	fullKey := cm.key(key)
	if cm.primary != nil {
		if value, err := cm.primary.Get(ctx, fullKey); err == nil {
			return value, nil
		}
	}
	return cm.fallback.Get(ctx, fullKey)
}

func (cm *CacheManager) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !cm.enabled {
		return nil
	}

	fullKey := cm.key(key)
	if cm.primary != nil {
		if err := cm.primary.Set(ctx, fullKey, value, ttl); err == nil {
			return nil
		}
	}
	return cm.fallback.Set(ctx, fullKey, value, ttl)
}

func (cm *CacheManager) Delete(ctx context.Context, key string) error {
	fullKey := cm.key(key)
	if cm.primary != nil {
		cm.primary.Delete(ctx, fullKey)
	}
	return cm.fallback.Delete(ctx, fullKey)
}

func (cm *CacheManager) DeletePattern(ctx context.Context, pattern string) error {
	fullPattern := cm.key(pattern)
	if cm.primary != nil {
		cm.primary.DeletePattern(ctx, fullPattern)
	}
	return cm.fallback.DeletePattern(ctx, fullPattern)
}

// Exists ignores the enabled flag: token revocation must hold even when
// response caching is switched off.
func (cm *CacheManager) Exists(ctx context.Context, key string) (bool, error) {
	fullKey := cm.key(key)
	if cm.primary != nil {
		if ok, err := cm.primary.Exists(ctx, fullKey); err == nil && ok {
			return true, nil
		}
	}
	return cm.fallback.Exists(ctx, fullKey)
}

// Ping checks the primary store. The in-memory fallback is always up.
func (cm *CacheManager) Ping(ctx context.Context) error {
	if cm.primary == nil {
		return nil
	}
	return cm.primary.Ping(ctx)
}

// Mark stores a flag key regardless of the enabled flag
func (cm *CacheManager) Mark(ctx context.Context, key string, ttl time.Duration) error {
	fullKey := cm.key(key)
	if cm.primary != nil {
		if err := cm.primary.Set(ctx, fullKey, "1", ttl); err == nil {
			return nil
		}
	}
	return cm.fallback.Set(ctx, fullKey, "1", ttl)
}

func (cm *CacheManager) GetJSON(ctx context.Context, key string, dest interface{}) error {
	value, err := cm.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), dest)
}

func (cm *CacheManager) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !cm.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return cm.Set(ctx, key, string(data), ttl)
}

func (cm *CacheManager) Close() error {
	if cm.primary != nil {
		cm.primary.Close()
	}
	return cm.fallback.Close()
}

// RedisCache methods

func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return value, err
}

func (rc *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := rc.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return rc.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rc.client.Exists(ctx, key).Result()
	return count > 0, err
}

func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// MemoryCache methods

func (mc *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	item, exists := mc.data[key]
	if !exists || time.Now().After(item.expiresAt) {
		return "", ErrMiss
	}
	return item.value, nil
}

func (mc *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for k, item := range mc.data {
		if now.After(item.expiresAt) {
			delete(mc.data, k)
		}
	}

	mc.data[key] = cacheItem{value: value, expiresAt: now.Add(ttl)}
	return nil
}

func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.data, key)
	return nil
}

func (mc *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key := range mc.data {
		if matchPattern(pattern, key) {
			delete(mc.data, key)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := mc.Get(ctx, key)
	return err == nil, nil
}

func (mc *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

func (mc *MemoryCache) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.data = make(map[string]cacheItem)
	return nil
}

// Only trailing and leading * wildcards are understood
func matchPattern(pattern, str string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(str, pattern[:len(pattern)-1])
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(str, pattern[1:])
	}
	return pattern == str
}

// Cache keys
const (
	CacheKeyTags         = "tags:all"
	CacheKeyTag          = "tags:%d"
	CacheKeyIngredients  = "ingredients:%s"
	CacheKeyRevokedToken = "revoked:%s"
)

// TTLShort is used when cache.ttl is unset
const TTLShort = 5 * time.Minute

// TagKey keys a single tag by id. It falls under the "tags:*" pattern the
// tag service invalidates on every write.
func TagKey(id uint) string {
	return fmt.Sprintf(CacheKeyTag, id)
}

// IngredientsKey keys an ingredient listing by its lowercased name prefix
func IngredientsKey(prefix string) string {
	return fmt.Sprintf(CacheKeyIngredients, strings.ToLower(prefix))
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(CacheKeyRevokedToken, jti)
}
