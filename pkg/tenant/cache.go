package tenant

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores directory lookup results. Entries are slices because a domain
// lookup may legitimately return several tenants.
type Cache interface {
	Get(ctx context.Context, key string) ([]*Tenant, bool)
	Set(ctx context.Context, key string, tenants []*Tenant, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// DefaultCacheSize is the default capacity of the in-memory cache.
const DefaultCacheSize = 1000

type memoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List
	maxSize int
	now     func() time.Time
}

type cacheEntry struct {
	key       string
	tenants   []*Tenant
	expiresAt time.Time
}

// NewMemoryCache returns an LRU cache holding at most maxSize keys.
// Expired entries are dropped lazily on access.
func NewMemoryCache(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &memoryCache{
		items:   make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]*Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return cloneAll(entry.tenants), true
}

func (c *memoryCache) Set(_ context.Context, key string, tenants []*Tenant, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{key: key, tenants: cloneAll(tenants), expiresAt: c.now().Add(ttl)}
	if el, ok := c.items[key]; ok {
		el.Value = entry
		c.lru.MoveToFront(el)
		return
	}
	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	c.items[key] = c.lru.PushFront(entry)
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if el, ok := c.items[key]; ok {
			c.lru.Remove(el)
			delete(c.items, key)
		}
	}
}

// RedisCache shares lookup results between instances.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

func NewRedisCache(client redis.UniversalClient, prefix string, log *slog.Logger) *RedisCache {
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{client: client, prefix: prefix + "tenant:", log: log}
}

// Key returns the Redis key that stores key.
func (c *RedisCache) Key(key string) string { return c.prefix + key }

func (c *RedisCache) Get(ctx context.Context, key string) ([]*Tenant, bool) {
	raw, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "tenant cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var tenants []*Tenant
	if err := json.Unmarshal(raw, &tenants); err != nil {
		return nil, false
	}
	return tenants, true
}

func (c *RedisCache) Set(ctx context.Context, key string, tenants []*Tenant, ttl time.Duration) {
	raw, err := json.Marshal(tenants)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.Key(key), raw, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache write failed", slog.Any("error", err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache delete failed", slog.Any("error", err))
	}
}

// CachedDirectory decorates a Directory with a lookup cache.
// Not-found results are not cached so newly onboarded tenants resolve immediately.
// List always reads through.
type CachedDirectory struct {
	next  Directory
	cache Cache
	ttl   time.Duration
}

func NewCachedDirectory(next Directory, cache Cache, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache, ttl: ttl}
}

func (d *CachedDirectory) ByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return d.one(ctx, "id:"+id.String(), func() (*Tenant, error) { return d.next.ByID(ctx, id) })
}

func (d *CachedDirectory) BySlug(ctx context.Context, slug string) (*Tenant, error) {
	return d.one(ctx, "slug:"+slug, func() (*Tenant, error) { return d.next.BySlug(ctx, slug) })
}

func (d *CachedDirectory) ByDomain(ctx context.Context, host string) ([]*Tenant, error) {
	key := "domain:" + NormalizeHost(host)
	if cached, ok := d.cache.Get(ctx, key); ok {
		return cached, nil
	}
	tenants, err := d.next.ByDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(tenants) > 0 {
		d.cache.Set(ctx, key, tenants, d.ttl)
	}
	return tenants, nil
}

func (d *CachedDirectory) List(ctx context.Context, filter ListFilter) ([]*Tenant, error) {
	return d.next.List(ctx, filter)
}

// Invalidate drops every cached entry that may refer to t.
func (d *CachedDirectory) Invalidate(ctx context.Context, t *Tenant) {
	keys := []string{"id:" + t.ID.String(), "slug:" + t.Slug}
	for _, dom := range t.Domains {
		keys = append(keys, "domain:"+NormalizeHost(dom))
	}
	d.cache.Delete(ctx, keys...)
}

func (d *CachedDirectory) one(ctx context.Context, key string, load func() (*Tenant, error)) (*Tenant, error) {
	if cached, ok := d.cache.Get(ctx, key); ok && len(cached) == 1 {
		return cached[0], nil
	}
	t, err := load()
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, key, []*Tenant{t}, d.ttl)
	return t, nil
}

func cloneAll(tenants []*Tenant) []*Tenant {
	out := make([]*Tenant, len(tenants))
	for i, t := range tenants {
		out[i] = clone(t)
	}
	return out
}
