package postgres

import (
	"context"
	"time"

	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveriesRepo is an append-only audit log of per-recipient broadcast
// outcomes. The pipeline writes here best-effort; a write failure never
// interrupts a broadcast.
type DeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *DeliveriesRepo {
	return &DeliveriesRepo{pool: pool, prom: prom}
}

func (r *DeliveriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *DeliveriesRepo) RecordDelivery(ctx context.Context, eventID string, userID int64, kind, status string, lastError *string) error {
	return r.observe("deliveries.record", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO deliveries (event_id, user_id, kind, status, last_error, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, eventID, userID, kind, status, lastError, time.Now().UTC())
		return err
	})
}
