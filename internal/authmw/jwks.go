package authmw

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/wisbric/meetplane/internal/telemetry"
)

// JWKSCache fetches and caches the AC's published signing keys, coalescing
// concurrent fetches for the same kid and tolerating transient upstream
// failures without poisoning previously cached entries.
type JWKSCache struct {
	jwksURL string
	client  *http.Client
	ttl     time.Duration
	group   singleflight.Group

	mu        sync.RWMutex
	keys      map[string]ed25519.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache builds a cache that fetches from jwksURL with the given HTTP
// client and refresh TTL (the contract calls for 1 hour).
func NewJWKSCache(jwksURL string, client *http.Client, ttl time.Duration) *JWKSCache {
	if client == nil {
		client = http.DefaultClient
	}
	return &JWKSCache{
		jwksURL: jwksURL,
		client:  client,
		ttl:     ttl,
		keys:    make(map[string]ed25519.PublicKey),
	}
}

// Resolve implements crypto.KeyResolver: it returns the cached public key for
// kid, refreshing the whole set (at most once per concurrent burst) if the
// kid is unknown or the cache has expired.
func (c *JWKSCache) Resolve(kid string) (ed25519.PublicKey, error) {
	if pub, ok := c.lookup(kid); ok {
		return pub, nil
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		return nil, c.refresh(context.Background())
	})
	if err != nil {
		return nil, err
	}

	pub, ok := c.lookup(kid)
	if !ok {
		return nil, fmt.Errorf("unknown signing key id %q", kid)
	}
	return pub, nil
}

func (c *JWKSCache) lookup(kid string) (ed25519.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if time.Since(c.fetchedAt) > c.ttl {
		return nil, false
	}
	pub, ok := c.keys[kid]
	return pub, ok
}

// refresh fetches the JWKS document and swaps the cache snapshot atomically.
// A 5xx or transport-level error is transient and leaves the existing
// snapshot (and its TTL) untouched rather than clearing it.
func (c *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		telemetry.JWKSCacheRefreshTotal.WithLabelValues("transport_error").Inc()
		return fmt.Errorf("fetching jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		telemetry.JWKSCacheRefreshTotal.WithLabelValues("upstream_error").Inc()
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		telemetry.JWKSCacheRefreshTotal.WithLabelValues("bad_status").Inc()
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		telemetry.JWKSCacheRefreshTotal.WithLabelValues("decode_error").Inc()
		return fmt.Errorf("decoding jwks: %w", err)
	}

	next := make(map[string]ed25519.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		pub, ok := k.Key.(ed25519.PublicKey)
		if !ok || !k.Valid() {
			continue
		}
		next[k.KeyID] = pub
	}

	c.mu.Lock()
	c.keys = next
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	telemetry.JWKSCacheRefreshTotal.WithLabelValues("success").Inc()
	return nil
}
