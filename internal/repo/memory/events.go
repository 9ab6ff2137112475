package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/google/uuid"
)

func validID(id string) error {
	if uuid.Validate(id) != nil {
		return event.ErrInvalidID
	}
	return nil
}

func (s *Store) CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error) {
	e := event.NewFromCreateRequest(req)

	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()

	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	if err := validID(id); err != nil {
		return event.Event{}, err
	}

	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()

	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]event.Event, error) {
	s.mu.RLock()
	out := make([]event.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

// FindOpenEvent returns the earliest-starting event still accepting
// registrations.
func (s *Store) FindOpenEvent(ctx context.Context) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best event.Event
	found := false

	for _, e := range s.events {
		if e.Status != event.StatusOpen {
			continue
		}
		if !found || e.StartAt.Before(best.StartAt) || (e.StartAt.Equal(best.StartAt) && e.ID < best.ID) {
			best = e
			found = true
		}
	}

	if !found {
		return event.Event{}, event.ErrNotFound
	}
	return best, nil
}

func (s *Store) ListScheduledEvents(ctx context.Context) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, e := range s.events {
		if e.Status == event.StatusScheduled {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CloseEvent stops admission. Only an open event can be closed.
func (s *Store) CloseEvent(ctx context.Context, id string) (event.Event, error) {
	if err := validID(id); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	if e.Status != event.StatusOpen {
		return event.Event{}, event.ErrInvalidTransition
	}

	e.Status = event.StatusClosed
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return e, nil
}

// SetEventRoom attaches room credentials and moves the event to
// scheduled. Re-setting the room on an already scheduled event is
// allowed; the sequence number increments on every set, which is what
// invalidates reveal jobs scheduled against the previous room.
func (s *Store) SetEventRoom(ctx context.Context, id string, room event.Room) (event.Event, error) {
	if err := validID(id); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	if e.Status != event.StatusOpen && e.Status != event.StatusClosed && e.Status != event.StatusScheduled {
		return event.Event{}, event.ErrInvalidTransition
	}

	room.Seq = 1
	if e.Room != nil {
		room.Seq = e.Room.Seq + 1
	}

	e.Room = &room
	e.Status = event.StatusScheduled
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return e, nil
}

// FinishEvent records the winner label. Only a scheduled event can
// finish, and neither room nor winner is ever unset afterwards.
func (s *Store) FinishEvent(ctx context.Context, id string, winner string) (event.Event, error) {
	if err := validID(id); err != nil {
		return event.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	if e.Status != event.StatusScheduled {
		return event.Event{}, event.ErrInvalidTransition
	}

	e.Winner = &winner
	e.Status = event.StatusFinished
	e.UpdatedAt = time.Now().UTC()
	s.events[id] = e
	return e, nil
}
