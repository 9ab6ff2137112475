package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func checkID(id string) error {
	if uuid.Validate(id) != nil {
		return event.ErrInvalidID
	}
	return nil
}

const eventColumns = `id, name, format, start_at, max_slots, status,
	room_code, room_passcode, room_reveal_at, room_seq, winner, created_at, updated_at`

func scanEvent(row pgx.Row) (event.Event, error) {
	var e event.Event
	var roomCode, roomPass *string
	var roomRevealAt *time.Time
	var roomSeq *int

	err := row.Scan(&e.ID, &e.Name, &e.Format, &e.StartAt, &e.MaxSlots, &e.Status,
		&roomCode, &roomPass, &roomRevealAt, &roomSeq, &e.Winner, &e.CreatedAt, &e.UpdatedAt)

	if err != nil {
		return event.Event{}, err
	}

	if roomCode != nil && roomPass != nil && roomRevealAt != nil && roomSeq != nil {
		e.Room = &event.Room{
			Code:     *roomCode,
			Passcode: *roomPass,
			RevealAt: *roomRevealAt,
			Seq:      *roomSeq,
		}
	}

	return e, nil
}

func (r *EventsRepo) CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error) {
	e := event.NewFromCreateRequest(req)

	err := r.observe("events.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO events(id, name, format, start_at, max_slots, status, created_at, updated_at)
			 VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.ID, e.Name, e.Format, e.StartAt, e.MaxSlots, string(e.Status), e.CreatedAt, e.UpdatedAt)
		return err
	})

	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) GetEvent(ctx context.Context, id string) (event.Event, error) {
	if err := checkID(id); err != nil {
		return event.Event{}, err
	}

	var e event.Event
	err := r.observe("events.get_by_id", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) ListEvents(ctx context.Context) ([]event.Event, error) {
	var rows pgx.Rows

	err := r.observe("events.list", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT `+eventColumns+` FROM events ORDER BY start_at ASC, id ASC`)
		return err
	})

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]event.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *EventsRepo) FindOpenEvent(ctx context.Context) (event.Event, error) {
	var e event.Event

	err := r.observe("events.find_open", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`SELECT `+eventColumns+` FROM events
			 WHERE status = 'open'
			 ORDER BY start_at ASC, id ASC
			 LIMIT 1`))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) ListScheduledEvents(ctx context.Context) ([]event.Event, error) {
	var rows pgx.Rows

	err := r.observe("events.list_scheduled", func() error {
		var err error
		rows, err = r.pool.Query(ctx,
			`SELECT `+eventColumns+` FROM events WHERE status = 'scheduled' ORDER BY id ASC`)
		return err
	})

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CloseEvent is a conditional update: the WHERE clause is the transition
// guard, so a concurrent transition cannot slip through between a read
// and a write.
func (r *EventsRepo) CloseEvent(ctx context.Context, id string) (event.Event, error) {
	if err := checkID(id); err != nil {
		return event.Event{}, err
	}

	var e event.Event
	err := r.observe("events.close", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`UPDATE events
			 SET status = 'closed', updated_at = NOW()
			 WHERE id = $1 AND status = 'open'
			 RETURNING `+eventColumns, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, r.transitionError(ctx, id)
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) SetEventRoom(ctx context.Context, id string, room event.Room) (event.Event, error) {
	if err := checkID(id); err != nil {
		return event.Event{}, err
	}

	var e event.Event
	err := r.observe("events.set_room", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`UPDATE events
			 SET status = 'scheduled',
			     room_code = $2,
			     room_passcode = $3,
			     room_reveal_at = $4,
			     room_seq = COALESCE(room_seq, 0) + 1,
			     updated_at = NOW()
			 WHERE id = $1 AND status IN ('open','closed','scheduled')
			 RETURNING `+eventColumns, id, room.Code, room.Passcode, room.RevealAt))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, r.transitionError(ctx, id)
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) FinishEvent(ctx context.Context, id string, winner string) (event.Event, error) {
	if err := checkID(id); err != nil {
		return event.Event{}, err
	}

	var e event.Event
	err := r.observe("events.finish", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx,
			`UPDATE events
			 SET status = 'finished', winner = $2, updated_at = NOW()
			 WHERE id = $1 AND status = 'scheduled'
			 RETURNING `+eventColumns, id, winner))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, r.transitionError(ctx, id)
		}
		return event.Event{}, err
	}

	return e, nil
}

// transitionError tells a missing event apart from a guard miss.
func (r *EventsRepo) transitionError(ctx context.Context, id string) error {
	var dummy string
	err := r.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, id).Scan(&dummy)

	if errors.Is(err, pgx.ErrNoRows) {
		return event.ErrNotFound
	}
	if err != nil {
		return err
	}
	return event.ErrInvalidTransition
}
