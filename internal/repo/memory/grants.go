package memory

import (
	"context"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/grant"
)

func (s *Store) CreateGrant(ctx context.Context, g grant.Grant) error {
	s.mu.Lock()
	s.grants = append(s.grants, g)
	s.mu.Unlock()
	return nil
}

func (s *Store) ListGrants(ctx context.Context) ([]grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]grant.Grant, len(s.grants))
	copy(out, s.grants)
	return out, nil
}

func (s *Store) HasActiveGrant(ctx context.Context, userID int64, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.grants {
		if g.UserID == userID && g.Active(now) {
			return true, nil
		}
	}
	return false, nil
}
