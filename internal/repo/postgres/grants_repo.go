package postgres

import (
	"context"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/grant"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GrantsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewGrantsRepo(pool *pgxpool.Pool, prom *observability.Prom) *GrantsRepo {
	return &GrantsRepo{pool: pool, prom: prom}
}

func (r *GrantsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *GrantsRepo) CreateGrant(ctx context.Context, g grant.Grant) error {
	return r.observe("grants.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO access_grants (id, user_id, expires_at, created_at)
			VALUES ($1,$2,$3,$4)
		`, g.ID, g.UserID, g.ExpiresAt, g.CreatedAt)
		return err
	})
}

func (r *GrantsRepo) ListGrants(ctx context.Context) ([]grant.Grant, error) {
	var rows pgx.Rows
	var err error

	err = r.observe("grants.list", func() error {
		rows, err = r.pool.Query(ctx, `
			SELECT id, user_id, expires_at, created_at
			FROM access_grants
			ORDER BY created_at ASC, id ASC
		`)
		return err
	})

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]grant.Grant, 0)
	for rows.Next() {
		var g grant.Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.ExpiresAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GrantsRepo) HasActiveGrant(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var active bool
	err := r.observe("grants.has_active", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM access_grants
				WHERE user_id = $1 AND expires_at > $2
			)
		`, userID, now).Scan(&active)
	})
	return active, err
}
