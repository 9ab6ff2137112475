package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/grant"
)

// ErrBadRevealTime is returned when an operator supplies a reveal time
// that is not HH:MM 24-hour.
var ErrBadRevealTime = errors.New("invalid reveal time, use HH:MM (24-hour)")

type EventStore interface {
	CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	GetEvent(ctx context.Context, id string) (event.Event, error)
	ListEvents(ctx context.Context) ([]event.Event, error)
	ListScheduledEvents(ctx context.Context) ([]event.Event, error)
	CloseEvent(ctx context.Context, id string) (event.Event, error)
	SetEventRoom(ctx context.Context, id string, room event.Room) (event.Event, error)
	FinishEvent(ctx context.Context, id string, winner string) (event.Event, error)
}

type GrantStore interface {
	CreateGrant(ctx context.Context, g grant.Grant) error
	ListGrants(ctx context.Context) ([]grant.Grant, error)
}

type RevealScheduler interface {
	ScheduleReveal(e event.Event) error
}

// Invalidator drops any cached open-event entry after a transition.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Config struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Service owns the operator-facing event transitions. The store enforces
// the status graph with conditional writes; this layer parses operator
// input, schedules reveal jobs, and keeps caches honest.
type Service struct {
	cfg      Config
	store    EventStore
	grants   GrantStore
	pipeline RevealScheduler
	cache    Invalidator
}

func New(cfg Config, store EventStore, grants GrantStore, pipeline RevealScheduler, cache Invalidator) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cfg:      cfg,
		store:    store,
		grants:   grants,
		pipeline: pipeline,
		cache:    cache,
	}
}

func (s *Service) CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error) {
	e, err := s.store.CreateEvent(ctx, req)
	if err != nil {
		return event.Event{}, err
	}

	s.invalidate(ctx)
	s.cfg.Logger.Info("event created", "event_id", e.ID, "name", e.Name, "max_slots", e.MaxSlots)
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (event.Event, error) {
	return s.store.GetEvent(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context) ([]event.Event, error) {
	return s.store.ListEvents(ctx)
}

func (s *Service) CloseRegistration(ctx context.Context, id string) (event.Event, error) {
	e, err := s.store.CloseEvent(ctx, id)
	if err != nil {
		return event.Event{}, err
	}

	s.invalidate(ctx)
	s.cfg.Logger.Info("registration closed", "event_id", e.ID)
	return e, nil
}

// SetRoom attaches credentials, moves the event to scheduled and
// registers the reveal plus reminder jobs.
func (s *Service) SetRoom(ctx context.Context, id, code, passcode string, revealAt time.Time) (event.Event, error) {
	e, err := s.store.SetEventRoom(ctx, id, event.Room{
		Code:     code,
		Passcode: passcode,
		RevealAt: revealAt,
	})
	if err != nil {
		return event.Event{}, err
	}

	s.invalidate(ctx)

	if err := s.pipeline.ScheduleReveal(e); err != nil {
		return event.Event{}, fmt.Errorf("schedule reveal: %w", err)
	}

	s.cfg.Logger.Info("room set", "event_id", e.ID, "reveal_at", revealAt, "room_seq", e.Room.Seq)
	return e, nil
}

func (s *Service) AnnounceWinner(ctx context.Context, id, winner string) (event.Event, error) {
	e, err := s.store.FinishEvent(ctx, id, winner)
	if err != nil {
		return event.Event{}, err
	}

	s.cfg.Logger.Info("winner announced", "event_id", e.ID, "winner", winner)
	return e, nil
}

func (s *Service) GrantAccess(ctx context.Context, userID int64, hours int) (grant.Grant, error) {
	g, err := grant.New(s.cfg.Clock.Now().UTC(), userID, hours)
	if err != nil {
		return grant.Grant{}, err
	}

	if err := s.grants.CreateGrant(ctx, g); err != nil {
		return grant.Grant{}, err
	}

	s.cfg.Logger.Info("access granted", "user_id", userID, "expires_at", g.ExpiresAt)
	return g, nil
}

func (s *Service) ListGrants(ctx context.Context) ([]grant.Grant, error) {
	return s.grants.ListGrants(ctx)
}

// Rehydrate re-derives reveal and reminder jobs from event state after a
// restart. Jobs are never persisted independently; everything pending is
// recoverable from events still in scheduled status.
func (s *Service) Rehydrate(ctx context.Context) (int, error) {
	events, err := s.store.ListScheduledEvents(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range events {
		if e.Room == nil {
			continue
		}
		if err := s.pipeline.ScheduleReveal(e); err != nil {
			s.cfg.Logger.Error("rehydrate reveal failed", "event_id", e.ID, "err", err)
			continue
		}
		n++
	}

	if n > 0 {
		s.cfg.Logger.Info("rehydrated reveal schedules", "count", n)
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// ParseRevealTime interprets the operator's HH:MM in server-local time,
// rolling to the next day when the moment has already passed today.
func ParseRevealTime(now time.Time, raw string) (time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, ErrBadRevealTime
	}

	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return time.Time{}, ErrBadRevealTime
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return time.Time{}, ErrBadRevealTime
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if at.Before(now) {
		at = at.Add(24 * time.Hour)
	}
	return at, nil
}
