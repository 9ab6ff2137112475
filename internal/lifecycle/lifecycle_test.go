package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/repo/memory"
)

type fakePipeline struct {
	mu        sync.Mutex
	scheduled []event.Event
	failNext  bool
}

func (f *fakePipeline) ScheduleReveal(e event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		return errors.New("scheduler down")
	}
	f.scheduled = append(f.scheduled, e)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.calls++ }

func newService(t *testing.T) (*Service, *memory.Store, *fakePipeline, *countingInvalidator) {
	t.Helper()

	store := memory.NewStore()
	pipe := &fakePipeline{}
	inv := &countingInvalidator{}
	svc := New(Config{}, store, store, pipe, inv)
	return svc, store, pipe, inv
}

func createEvent(t *testing.T, svc *Service) event.Event {
	t.Helper()

	e, err := svc.CreateEvent(context.Background(), event.CreateEventRequest{
		Name:     "Weekend Finals",
		Format:   "duo",
		StartAt:  time.Now().Add(3 * time.Hour).UTC(),
		MaxSlots: 50,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func TestSetRoom_SchedulesReveal(t *testing.T) {
	svc, _, pipe, inv := newService(t)
	e := createEvent(t, svc)

	revealAt := time.Now().Add(time.Hour).UTC()

	got, err := svc.SetRoom(context.Background(), e.ID, "R1", "pw", revealAt)
	if err != nil {
		t.Fatalf("set room: %v", err)
	}

	if got.Status != event.StatusScheduled {
		t.Fatalf("status %s, want scheduled", got.Status)
	}
	if len(pipe.scheduled) != 1 {
		t.Fatalf("pipeline got %d reveal schedules, want 1", len(pipe.scheduled))
	}
	if pipe.scheduled[0].Room == nil || !pipe.scheduled[0].Room.RevealAt.Equal(revealAt) {
		t.Fatalf("pipeline received wrong room snapshot: %+v", pipe.scheduled[0].Room)
	}
	if inv.calls == 0 {
		t.Fatalf("cache was never invalidated")
	}
}

func TestSetRoom_SchedulerFailureSurfaces(t *testing.T) {
	svc, _, pipe, _ := newService(t)
	e := createEvent(t, svc)

	pipe.failNext = true

	_, err := svc.SetRoom(context.Background(), e.ID, "R1", "pw", time.Now().Add(time.Hour))
	if err == nil {
		t.Fatalf("expected error from failed reveal scheduling")
	}
}

func TestCloseRegistration_InvalidatesCache(t *testing.T) {
	svc, _, _, inv := newService(t)
	e := createEvent(t, svc)

	before := inv.calls
	if _, err := svc.CloseRegistration(context.Background(), e.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if inv.calls <= before {
		t.Fatalf("close must invalidate the open-event cache")
	}
}

func TestAnnounceWinner_RequiresScheduled(t *testing.T) {
	svc, _, _, _ := newService(t)
	e := createEvent(t, svc)

	_, err := svc.AnnounceWinner(context.Background(), e.ID, "Team A")
	if !errors.Is(err, event.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.SetRoom(context.Background(), e.ID, "R1", "pw", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set room: %v", err)
	}

	got, err := svc.AnnounceWinner(context.Background(), e.ID, "Team A")
	if err != nil {
		t.Fatalf("announce winner: %v", err)
	}
	if got.Winner == nil || *got.Winner != "Team A" {
		t.Fatalf("winner not recorded: %+v", got.Winner)
	}
}

func TestRehydrate_RestoresScheduledEvents(t *testing.T) {
	svc, store, pipe, _ := newService(t)

	ctx := context.Background()

	a := createEvent(t, svc)
	b := createEvent(t, svc)
	createEvent(t, svc) // stays open, must not be rehydrated

	if _, err := store.SetEventRoom(ctx, a.ID, event.Room{Code: "A", Passcode: "p", RevealAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("set room a: %v", err)
	}
	if _, err := store.SetEventRoom(ctx, b.ID, event.Room{Code: "B", Passcode: "p", RevealAt: time.Now().Add(2 * time.Hour)}); err != nil {
		t.Fatalf("set room b: %v", err)
	}

	// rooms were set directly on the store: as if a previous process
	// scheduled them and died before this one started
	n, err := svc.Rehydrate(ctx)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if n != 2 {
		t.Fatalf("rehydrated %d events, want 2", n)
	}
	if len(pipe.scheduled) != 2 {
		t.Fatalf("pipeline got %d schedules, want 2", len(pipe.scheduled))
	}
}

func TestGrantAccess(t *testing.T) {
	svc, _, _, _ := newService(t)

	g, err := svc.GrantAccess(context.Background(), 42, 24)
	if err != nil {
		t.Fatalf("grant access: %v", err)
	}
	if g.UserID != 42 {
		t.Fatalf("grant user %d, want 42", g.UserID)
	}

	if _, err := svc.GrantAccess(context.Background(), 42, 0); err == nil {
		t.Fatalf("zero-hour grant must fail")
	}

	grants, err := svc.ListGrants(context.Background())
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("got %d grants, want 1", len(grants))
	}
}

func TestParseRevealTime(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "later_today", raw: "22:15", want: time.Date(2025, 6, 1, 22, 15, 0, 0, time.UTC)},
		{name: "already_passed_rolls_over", raw: "09:00", want: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		{name: "padded", raw: "  20:00 ", want: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)},
		{name: "no_colon", raw: "2200", wantErr: true},
		{name: "hour_out_of_range", raw: "24:00", wantErr: true},
		{name: "minute_out_of_range", raw: "10:75", wantErr: true},
		{name: "garbage", raw: "soon", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRevealTime(now, tt.raw)

			if tt.wantErr {
				if !errors.Is(err, ErrBadRevealTime) {
					t.Fatalf("expected ErrBadRevealTime, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
