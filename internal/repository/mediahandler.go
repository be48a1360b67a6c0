package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/meetplane/internal/apperr"
)

// MediaHandler is a registry row for one media-handler instance.
type MediaHandler struct {
	HandlerID            string
	Region               string
	WebTransportEndpoint string
	GRPCEndpoint         string
	MaxStreams           int
	CurrentStreams       int
	HealthStatus         HealthStatus
	CPUPercent           *float64
	MemPercent           *float64
	BandwidthPercent     *float64
	LastHeartbeatAt      time.Time
	RegisteredAt         time.Time
	UpdatedAt            time.Time
}

// MediaHandlerRepository provides parameterized access to media_handlers.
type MediaHandlerRepository struct {
	db DBTX
}

func NewMediaHandlerRepository(db DBTX) *MediaHandlerRepository {
	return &MediaHandlerRepository{db: db}
}

const mhColumns = `handler_id, region, webtransport_endpoint, grpc_endpoint, max_streams, current_streams,
	health_status, cpu_percent, mem_percent, bandwidth_percent, last_heartbeat_at, registered_at, updated_at`

func scanMediaHandler(row pgx.Row) (*MediaHandler, error) {
	var h MediaHandler
	err := row.Scan(&h.HandlerID, &h.Region, &h.WebTransportEndpoint, &h.GRPCEndpoint, &h.MaxStreams,
		&h.CurrentStreams, &h.HealthStatus, &h.CPUPercent, &h.MemPercent, &h.BandwidthPercent,
		&h.LastHeartbeatAt, &h.RegisteredAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Upsert registers or re-registers a media handler on its natural key.
func (r *MediaHandlerRepository) Upsert(ctx context.Context, h *MediaHandler) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO media_handlers (%s)
		VALUES ($1, $2, $3, $4, $5, 0, 'pending', NULL, NULL, NULL, now(), now(), now())
		ON CONFLICT (handler_id) DO UPDATE SET
			region = excluded.region, webtransport_endpoint = excluded.webtransport_endpoint,
			grpc_endpoint = excluded.grpc_endpoint, max_streams = excluded.max_streams,
			health_status = 'pending', last_heartbeat_at = now(), updated_at = now()`, mhColumns),
		h.HandlerID, h.Region, h.WebTransportEndpoint, h.GRPCEndpoint, h.MaxStreams,
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// Heartbeat records the latest load, resource utilization, and health
// report from a media handler.
func (r *MediaHandlerRepository) Heartbeat(ctx context.Context, handlerID string, currentStreams int, cpuPct, memPct, bwPct *float64, status HealthStatus) error {
	_, err := r.db.Exec(ctx, `
		UPDATE media_handlers
		SET current_streams = $2, cpu_percent = $3, mem_percent = $4, bandwidth_percent = $5,
			health_status = $6, last_heartbeat_at = now(), updated_at = now()
		WHERE handler_id = $1`, handlerID, currentStreams, cpuPct, memPct, bwPct, status)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// SelectCandidates returns up to limit non-saturated, non-stale, healthy
// media handlers in the given region ordered by ascending stream load ratio.
func (r *MediaHandlerRepository) SelectCandidates(ctx context.Context, region string, staleThreshold time.Duration, limit int) ([]*MediaHandler, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM media_handlers
		WHERE region = $1
			AND health_status = 'healthy'
			AND current_streams < max_streams
			AND last_heartbeat_at > now() - $2::interval
		ORDER BY (current_streams::float8 / max_streams::float8) ASC
		LIMIT $3`, mhColumns),
		region, fmt.Sprintf("%d seconds", int(staleThreshold.Seconds())), limit,
	)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var out []*MediaHandler
	for rows.Next() {
		h, err := scanMediaHandler(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return out, nil
}

// GetByID fetches a single media handler row by its natural key.
func (r *MediaHandlerRepository) GetByID(ctx context.Context, handlerID string) (*MediaHandler, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM media_handlers WHERE handler_id = $1`, mhColumns), handlerID)
	h, err := scanMediaHandler(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("media handler")
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return h, nil
}

// MarkStale demotes every media handler whose heartbeat is older than
// staleThreshold and that is neither unhealthy nor draining.
func (r *MediaHandlerRepository) MarkStale(ctx context.Context, staleThreshold time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE media_handlers
		SET health_status = 'unhealthy', updated_at = now()
		WHERE last_heartbeat_at < now() - $1::interval
			AND health_status NOT IN ('unhealthy', 'draining')`,
		fmt.Sprintf("%d seconds", int(staleThreshold.Seconds())),
	)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return tag.RowsAffected(), nil
}
