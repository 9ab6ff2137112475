package grant

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Grant is a time-boxed access record for a user. Grants are additive:
// the same user can hold several and none is ever updated or removed.
type Grant struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

var ErrInvalidDuration = errors.New("grant duration must be positive")

func (g Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

func New(now time.Time, userID int64, hours int) (Grant, error) {
	if hours <= 0 {
		return Grant{}, ErrInvalidDuration
	}

	return Grant{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(hours) * time.Hour),
		CreatedAt: now,
	}, nil
}
