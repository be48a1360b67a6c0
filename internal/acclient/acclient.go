// Package acclient is the GC's HTTP client for the AC's internal,
// server-to-server token-minting endpoints.
package acclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const requestDeadline = 5 * time.Second

// TokenSource returns the GC's own currently-valid service bearer token.
type TokenSource func() string

// Client calls the AC's internal token-mint endpoints.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// New builds an acclient.Client against the AC's base URL.
func New(baseURL string, tokens TokenSource) *Client {
	return &Client{baseURL: baseURL, tokens: tokens, http: &http.Client{Timeout: requestDeadline}}
}

// TokenResult mirrors the AC's token response shape.
type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

type meetingTokenRequest struct {
	UserID       string   `json:"user_id"`
	OrgID        string   `json:"org_id"`
	MeetingID    string   `json:"meeting_id"`
	Capabilities []string `json:"capabilities"`
}

// MeetingToken requests a 15-minute meeting-scoped token for an
// authenticated participant.
func (c *Client) MeetingToken(ctx context.Context, userID, orgID, meetingID uuid.UUID, capabilities []string) (*TokenResult, error) {
	return c.post(ctx, "/internal/api/v1/tokens/meeting", meetingTokenRequest{
		UserID: userID.String(), OrgID: orgID.String(), MeetingID: meetingID.String(), Capabilities: capabilities,
	})
}

type guestTokenRequest struct {
	ParticipantID string   `json:"participant_id"`
	MeetingID     string   `json:"meeting_id"`
	Capabilities  []string `json:"capabilities"`
}

// GuestToken requests a shorter-lived, reduced-capability token for a guest.
func (c *Client) GuestToken(ctx context.Context, participantID string, meetingID uuid.UUID, capabilities []string) (*TokenResult, error) {
	return c.post(ctx, "/internal/api/v1/tokens/guest", guestTokenRequest{
		ParticipantID: participantID, MeetingID: meetingID.String(), Capabilities: capabilities,
	})
}

func (c *Client) post(ctx context.Context, path string, body any) (*TokenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestDeadline)
	defer cancel()

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling authentication controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("authentication controller returned status %d", resp.StatusCode)
	}

	var result TokenResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &result, nil
}
