package oauthclient

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSource struct {
	results []fakeResult
	calls   int32
}

type fakeResult struct {
	tok *tokenResult
	err error
}

func (f *fakeSource) Token() (*tokenResult, error) {
	i := atomic.AddInt32(&f.calls, 1) - 1
	if int(i) >= len(f.results) {
		i = int32(len(f.results) - 1)
	}
	r := f.results[i]
	return r.tok, r.err
}

func newTestManager(source oauthSource) *Manager {
	return &Manager{source: source, logger: slog.Default(), ready: make(chan struct{})}
}

func TestManagerCurrentEmptyBeforeFirstFetch(t *testing.T) {
	m := newTestManager(&fakeSource{results: []fakeResult{{tok: &tokenResult{AccessToken: "t1", Expiry: time.Now().Add(time.Hour)}}}})
	if got := m.Current(); got != "" {
		t.Fatalf("Current() before Run = %q, want empty", got)
	}
}

func TestManagerRunPublishesTokenAndUnblocksWaitReady(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{tok: &tokenResult{AccessToken: "t1", Expiry: time.Now().Add(time.Hour)}}}}
	m := newTestManager(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	readyCtx, readyCancel := context.WithTimeout(context.Background(), time.Second)
	defer readyCancel()
	if err := m.WaitReady(readyCtx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	if got := m.Current(); got != "t1" {
		t.Fatalf("Current() = %q, want %q", got, "t1")
	}
}

func TestManagerWaitReadyRespectsContextCancellation(t *testing.T) {
	src := &fakeSource{results: []fakeResult{{err: errors.New("token endpoint unreachable")}}}
	m := newTestManager(src)

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	defer cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	if err := m.WaitReady(waitCtx); err == nil {
		t.Fatal("WaitReady(): expected error when the token fetch never succeeds, got nil")
	}
}

func TestManagerRecoversAfterTransientFailure(t *testing.T) {
	src := &fakeSource{results: []fakeResult{
		{err: errors.New("transient")},
		{tok: &tokenResult{AccessToken: "t2", Expiry: time.Now().Add(time.Hour)}},
	}}
	m := newTestManager(src)
	// The retry after the first failure waits minBackoff (1s), inside the 3s
	// WaitReady deadline below.
	m.ready = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	readyCtx, readyCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer readyCancel()
	if err := m.WaitReady(readyCtx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	if got := m.Current(); got != "t2" {
		t.Fatalf("Current() = %q, want %q", got, "t2")
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	b := minBackoff
	for i := 0; i < 20; i++ {
		b = nextBackoff(b)
	}
	if b != maxBackoff {
		t.Fatalf("nextBackoff() converged to %v, want %v", b, maxBackoff)
	}
}
