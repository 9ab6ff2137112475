package memory

import (
	"context"
	"sort"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
)

// Admit performs the whole admission check-and-insert under one lock:
// event must be open, the user must not already hold a slot, and the
// slot count must be below the cap. Two concurrent admissions for the
// last slot can never both succeed.
func (s *Store) Admit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
	if err := validID(req.EventID); err != nil {
		return registration.Registration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[req.EventID]
	if !ok {
		return registration.Registration{}, event.ErrNotFound
	}
	if e.Status != event.StatusOpen {
		return registration.Registration{}, event.ErrNotOpen
	}

	byUser := s.regs[req.EventID]
	if _, dup := byUser[req.UserID]; dup {
		return registration.Registration{}, registration.ErrAlreadyRegistered
	}
	if len(byUser) >= e.MaxSlots {
		return registration.Registration{}, registration.ErrSlotsFull
	}

	reg := registration.NewFromCreateRequest(req)

	if byUser == nil {
		byUser = make(map[int64]registration.Registration)
		s.regs[req.EventID] = byUser
	}
	byUser[req.UserID] = reg

	return reg, nil
}

func (s *Store) ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error) {
	if err := validID(eventID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.events[eventID]; !ok {
		return nil, event.ErrNotFound
	}

	out := make([]registration.Registration, 0, len(s.regs[eventID]))
	for _, r := range s.regs[eventID] {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *Store) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	if err := validID(eventID); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs[eventID]), nil
}

func (s *Store) FindRegistration(ctx context.Context, eventID string, userID int64) (registration.Registration, error) {
	if err := validID(eventID); err != nil {
		return registration.Registration{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.regs[eventID][userID]
	if !ok {
		return registration.Registration{}, registration.ErrNotFound
	}
	return r, nil
}

// ListRegistrationsByUser returns every slot the user holds, across all
// events.
func (s *Store) ListRegistrationsByUser(ctx context.Context, userID int64) ([]registration.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []registration.Registration
	for _, byUser := range s.regs {
		if r, ok := byUser[userID]; ok {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}
