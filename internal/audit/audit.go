// Package audit provides an async, buffered writer for the audit log trail.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/meetplane/internal/repository"
)

// Entry represents a single audit log entry to be written.
type Entry struct {
	OrgID      uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Resource   string
	ResourceID string
	Detail     json.RawMessage
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine so the request
// path never waits on an audit insert.
type Writer struct {
	repo    *repository.AuditLogRepository
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(repo *repository.AuditLogRepository, logger *slog.Logger) *Writer {
	return &Writer{
		repo:    repo,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the
// database. It returns immediately; the goroutine exits once Close has
// drained the channel or ctx is cancelled.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"action", entry.Action, "resource", entry.Resource)
	}
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		err := w.repo.Insert(ctx, &repository.AuditLog{
			OrgID:        e.OrgID,
			UserID:       e.UserID,
			Action:       e.Action,
			ResourceType: e.Resource,
			ResourceID:   e.ResourceID,
			Details:      e.Detail,
		})
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"action", e.Action, "resource", e.Resource)
		}
	}
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
