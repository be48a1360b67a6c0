package acclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestMeetingTokenSendsBearerAndDecodesResponse(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody meetingTokenRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		json.NewEncoder(w).Encode(TokenResult{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 900})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "gc-service-token" })

	userID, orgID, meetingID := uuid.New(), uuid.New(), uuid.New()
	result, err := c.MeetingToken(t.Context(), userID, orgID, meetingID, []string{"meeting:join"})
	if err != nil {
		t.Fatalf("MeetingToken() error: %v", err)
	}

	if gotAuth != "Bearer gc-service-token" {
		t.Fatalf("Authorization header = %q, want %q", gotAuth, "Bearer gc-service-token")
	}
	if gotPath != "/internal/api/v1/tokens/meeting" {
		t.Fatalf("path = %q, want %q", gotPath, "/internal/api/v1/tokens/meeting")
	}
	if gotBody.UserID != userID.String() || gotBody.MeetingID != meetingID.String() {
		t.Fatalf("request body = %+v, want user/meeting %s/%s", gotBody, userID, meetingID)
	}
	if result.AccessToken != "abc" {
		t.Fatalf("AccessToken = %q, want %q", result.AccessToken, "abc")
	}
}

func TestGuestTokenPropagatesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "" })
	if _, err := c.GuestToken(t.Context(), "guest-1", uuid.New(), []string{"meeting:view"}); err == nil {
		t.Fatal("GuestToken(): expected error on a 401 upstream response, got nil")
	}
}

func TestPostOmitsAuthorizationHeaderWhenTokenSourceEmpty(t *testing.T) {
	var gotAuth string
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, sawAuth = r.Header.Get("Authorization"), r.Header.Get("Authorization") != ""
		json.NewEncoder(w).Encode(TokenResult{AccessToken: "x"})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "" })
	if _, err := c.GuestToken(t.Context(), "guest-1", uuid.New(), nil); err != nil {
		t.Fatalf("GuestToken() error: %v", err)
	}
	if sawAuth {
		t.Fatalf("Authorization header = %q, want none when the token source returns empty", gotAuth)
	}
}
