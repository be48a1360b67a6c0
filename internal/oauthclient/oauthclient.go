// Package oauthclient maintains the GC's own service-to-service bearer
// token: a background task that acquires a client-credentials token from
// the AC, republishes it ahead of expiration, and backs off exponentially
// on failure.
package oauthclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	minBackoff     = 1 * time.Second
	maxBackoff     = 30 * time.Second
	refreshMargin  = 6 // each refresh is scheduled after 1/refreshMargin of the token's remaining lifetime
	minRefreshWait = time.Second
)

// Manager holds the currently valid token and keeps it fresh in the
// background.
type Manager struct {
	source oauthSource
	logger *slog.Logger

	mu      sync.RWMutex
	current string
	ready   chan struct{}
	once    sync.Once
}

// oauthSource is the narrow slice of oauth2.TokenSource this package needs,
// so tests can substitute a fake.
type oauthSource interface {
	Token() (*tokenResult, error)
}

type tokenResult struct {
	AccessToken string
	Expiry      time.Time
}

// New builds a Manager that fetches tokens from tokenURL using the given
// client credentials and scope.
func New(tokenURL, clientID, clientSecret, scope string, logger *slog.Logger) *Manager {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	if scope != "" {
		cfg.Scopes = []string{scope}
	}
	return &Manager{
		source: &clientCredentialsSource{cfg: cfg},
		logger: logger,
		ready:  make(chan struct{}),
	}
}

// Current returns the currently cached token, or "" before the first
// successful fetch. Suitable as a registry.TokenSource.
func (m *Manager) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run fetches an initial token, then loops refreshing ahead of expiry with
// exponential backoff on failure, until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		tok, err := m.source.Token()
		if err != nil {
			m.logger.Error("fetching service token", "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		m.mu.Lock()
		m.current = tok.AccessToken
		m.mu.Unlock()
		m.once.Do(func() { close(m.ready) })
		backoff = minBackoff

		wait := time.Until(tok.Expiry) / refreshMargin
		if wait < minRefreshWait {
			wait = minRefreshWait
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// WaitReady blocks until the first token has been fetched or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
