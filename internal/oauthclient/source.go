package oauthclient

import (
	"context"

	"golang.org/x/oauth2/clientcredentials"
)

// clientCredentialsSource adapts clientcredentials.Config to oauthSource,
// fetching a fresh token on every call (the package's own Manager owns
// caching and refresh scheduling, not oauth2's).
type clientCredentialsSource struct {
	cfg *clientcredentials.Config
}

func (s *clientCredentialsSource) Token() (*tokenResult, error) {
	tok, err := s.cfg.Token(context.Background())
	if err != nil {
		return nil, err
	}
	return &tokenResult{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}
