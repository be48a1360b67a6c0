package audit

import (
	"log/slog"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP_XForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")

	ip := clientIP(r)
	want := netip.MustParseAddr("203.0.113.50")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_XRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.23")

	ip := clientIP(r)
	want := netip.MustParseAddr("198.51.100.23")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_RemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("192.0.2.1")
	if ip != want {
		t.Errorf("clientIP = %v, want %v", ip, want)
	}
}

func TestClientIP_Precedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	r.Header.Set("X-Real-IP", "198.51.100.23")
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("203.0.113.50")
	if ip != want {
		t.Errorf("clientIP = %v, want %v (X-Forwarded-For should take precedence)", ip, want)
	}
}

func TestClientIP_XRealIPFallback(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Real-IP", "198.51.100.23")
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("198.51.100.23")
	if ip != want {
		t.Errorf("clientIP = %v, want %v (X-Real-IP should take precedence over RemoteAddr)", ip, want)
	}
}

func TestClientIP_InvalidXFF(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	r.RemoteAddr = "192.0.2.1:12345"

	ip := clientIP(r)
	want := netip.MustParseAddr("192.0.2.1")
	if ip != want {
		t.Errorf("clientIP = %v, want %v (should fall back to RemoteAddr)", ip, want)
	}
}

func TestLog_DropsWhenFull(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)
	// Don't start the background goroutine — nothing drains the channel.

	// Fill the buffer.
	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{Action: "test", Resource: "test"})
	}

	// The next log should be dropped (non-blocking).
	w.Log(Entry{Action: "dropped", Resource: "dropped"})

	// Verify buffer is full.
	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}
