package postgres

import (
	"context"
	"errors"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{pool: pool, prom: prom}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// Admit runs the whole admission inside one transaction. The event row
// is locked FOR UPDATE, so status, duplicate and capacity checks and the
// insert see one consistent view; two concurrent admissions serialize on
// the row lock.
func (repo *RegistrationsRepo) Admit(ctx context.Context, req registration.CreateRegistrationRequest) (reg registration.Registration, err error) {
	if err = checkID(req.EventID); err != nil {
		return
	}

	tx, err := repo.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// 1) lock event row, check it is still open
	var status string
	var maxSlots int
	err = repo.observe("registrations.admit.lock_event", func() error {
		return tx.QueryRow(ctx, `
			SELECT status, max_slots
			FROM events
			WHERE id = $1
			FOR UPDATE
		`, req.EventID).Scan(&status, &maxSlots)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
		}
		return
	}

	if event.Status(status) != event.StatusOpen {
		err = event.ErrNotOpen
		return
	}

	// 2) duplicate check
	var exists bool
	err = repo.observe("registrations.admit.duplicate_check", func() error {
		return tx.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE event_id = $1 AND user_id = $2
		)`, req.EventID, req.UserID).Scan(&exists)
	})

	if err != nil {
		return
	}
	if exists {
		err = registration.ErrAlreadyRegistered
		return
	}

	// 3) capacity check
	var current int
	err = repo.observe("registrations.admit.capacity_check", func() error {
		return tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations WHERE event_id = $1`,
			req.EventID).Scan(&current)
	})

	if err != nil {
		return
	}
	if current >= maxSlots {
		err = registration.ErrSlotsFull
		return
	}

	// 4) insert
	reg = registration.NewFromCreateRequest(req)

	err = repo.observe("registrations.admit.insert", func() error {
		_, e := tx.Exec(ctx, `
			INSERT INTO registrations (id, event_id, user_id, display_name, ign, external_id, registered_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, reg.ID, reg.EventID, reg.UserID, reg.DisplayName, reg.IGN, reg.ExternalID, reg.RegisteredAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "registrations_event_user_uniq" {
			err = registration.ErrAlreadyRegistered
		}
		return
	}

	err = tx.Commit(ctx)
	return
}

func (repo *RegistrationsRepo) ListRegistrations(ctx context.Context, eventID string) (regs []registration.Registration, err error) {
	if err = checkID(eventID); err != nil {
		return
	}

	var rows pgx.Rows

	err = repo.observe("registrations.list_by_event", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT id, event_id, user_id, display_name, ign, external_id, registered_at
			FROM registrations
			WHERE event_id = $1
			ORDER BY registered_at ASC, id ASC
		`, eventID)
		return err
	})

	if err != nil {
		return
	}
	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		var r registration.Registration
		e := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.DisplayName, &r.IGN, &r.ExternalID, &r.RegisteredAt)
		if e != nil {
			err = e
			return
		}
		regs = append(regs, r)
	}

	if e := rows.Err(); e != nil {
		err = e
		return
	}

	// distinguish "no registrations" from "no such event"
	if len(regs) == 0 {
		var dummy string

		err = repo.observe("registrations.list_by_event.check_event_exists", func() error {
			return repo.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, eventID).Scan(&dummy)
		})

		if errors.Is(err, pgx.ErrNoRows) {
			err = event.ErrNotFound
			return
		}
		if err != nil {
			return
		}
	}

	return
}

func (repo *RegistrationsRepo) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	if err := checkID(eventID); err != nil {
		return 0, err
	}

	var total int
	err := repo.observe("registrations.count_for_event", func() error {
		return repo.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&total)
	})
	return total, err
}

func (repo *RegistrationsRepo) FindRegistration(ctx context.Context, eventID string, userID int64) (registration.Registration, error) {
	if err := checkID(eventID); err != nil {
		return registration.Registration{}, err
	}

	var r registration.Registration
	err := repo.observe("registrations.find", func() error {
		return repo.pool.QueryRow(ctx, `
			SELECT id, event_id, user_id, display_name, ign, external_id, registered_at
			FROM registrations
			WHERE event_id = $1 AND user_id = $2
		`, eventID, userID).Scan(&r.ID, &r.EventID, &r.UserID, &r.DisplayName, &r.IGN, &r.ExternalID, &r.RegisteredAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, err
	}

	return r, nil
}

func (repo *RegistrationsRepo) ListRegistrationsByUser(ctx context.Context, userID int64) (regs []registration.Registration, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_by_user", func() error {
		rows, err = repo.pool.Query(ctx, `
			SELECT id, event_id, user_id, display_name, ign, external_id, registered_at
			FROM registrations
			WHERE user_id = $1
			ORDER BY registered_at ASC, id ASC
		`, userID)
		return err
	})

	if err != nil {
		return
	}
	defer rows.Close()

	regs = make([]registration.Registration, 0)

	for rows.Next() {
		var r registration.Registration
		e := rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.DisplayName, &r.IGN, &r.ExternalID, &r.RegisteredAt)
		if e != nil {
			err = e
			return
		}
		regs = append(regs, r)
	}

	err = rows.Err()
	return
}
