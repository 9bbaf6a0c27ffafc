// Package keycache remembers API key verdicts so repeated checks of the same
// key skip the network probe. Keys are stored only as xxhash digests.
package keycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/mapstate/internal/apikey"
	"github.com/mohammed-shakir/mapstate/internal/cache/redisstore"
	"github.com/mohammed-shakir/mapstate/internal/core/observability"
)

const (
	verdictValid    = "1"
	verdictRejected = "0"
)

type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type entry struct {
	valid   bool
	expires time.Time
}

type Cache struct {
	next   apikey.Verifier
	remote Remote
	ttl    time.Duration
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local *lru.Cache[string, entry]
}

// New wraps next. remote may be nil to keep verdicts in process only.
func New(next apikey.Verifier, remote Remote, size int, ttl time.Duration, logger *slog.Logger) *Cache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	c, _ := lru.New[string, entry](size)
	return &Cache{next: next, remote: remote, ttl: ttl, log: logger, now: time.Now, local: c}
}

func Key(apiKey string) string {
	return fmt.Sprintf("apikey:%016x", xxhash.Sum64String(apiKey))
}

func (c *Cache) Verify(ctx context.Context, apiKey string) error {
	k := Key(apiKey)

	if valid, ok := c.lookupLocal(k); ok {
		observability.IncKeyCache("local", "hit")
		return verdictErr(valid)
	}
	observability.IncKeyCache("local", "miss")

	if c.remote != nil {
		b, err := c.remote.Get(ctx, k)
		switch {
		case err == nil:
			observability.IncKeyCache("redis", "hit")
			valid := string(b) == verdictValid
			c.storeLocal(k, valid)
			return verdictErr(valid)
		case errors.Is(err, redisstore.ErrNotFound):
			observability.IncKeyCache("redis", "miss")
		default:
			observability.IncKeyCache("redis", "error")
			c.log.Warn("api key cache read failed", "err", err)
		}
	}

	err := c.next.Verify(ctx, apiKey)
	var rejected *apikey.RejectedError
	switch {
	case err == nil:
		c.store(ctx, k, true)
	case errors.As(err, &rejected) && rejected.Definitive():
		c.store(ctx, k, false)
	}
	// 5xx, 429, transport failures and empty keys are not remembered
	return err
}

// Forget drops any verdict held for apiKey in both tiers.
func (c *Cache) Forget(ctx context.Context, apiKey string) {
	k := Key(apiKey)
	c.mu.Lock()
	c.local.Remove(k)
	c.mu.Unlock()
	if c.remote == nil {
		return
	}
	if err := c.remote.Del(ctx, k); err != nil {
		c.log.Warn("api key cache delete failed", "err", err)
	}
}

func verdictErr(valid bool) error {
	if valid {
		return nil
	}
	return fmt.Errorf("%w: cached verdict", apikey.ErrRejected)
}

func (c *Cache) lookupLocal(k string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.local.Get(k)
	if !ok {
		return false, false
	}
	if c.now().After(e.expires) {
		c.local.Remove(k)
		return false, false
	}
	return e.valid, true
}

func (c *Cache) storeLocal(k string, valid bool) {
	c.mu.Lock()
	c.local.Add(k, entry{valid: valid, expires: c.now().Add(c.ttl)})
	c.mu.Unlock()
}

func (c *Cache) store(ctx context.Context, k string, valid bool) {
	c.storeLocal(k, valid)
	if c.remote == nil {
		return
	}
	v := verdictRejected
	if valid {
		v = verdictValid
	}
	if err := c.remote.Set(ctx, k, []byte(v), c.ttl); err != nil {
		c.log.Warn("api key cache write failed", "err", err)
	}
}
