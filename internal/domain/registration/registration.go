package registration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Registration struct {
	ID           string    `json:"id"`
	EventID      string    `json:"eventId"`
	UserID       int64     `json:"userId"`
	DisplayName  string    `json:"displayName"`
	IGN          string    `json:"ign"`
	ExternalID   string    `json:"externalId"`
	RegisteredAt time.Time `json:"registeredAt"`
}

var (
	ErrAlreadyRegistered = errors.New("registration already exists")
	ErrSlotsFull         = errors.New("registration slots are full")
	ErrNotFound          = errors.New("registration not found")
)

type CreateRegistrationRequest struct {
	EventID     string `json:"-"`
	UserID      int64  `json:"userId" binding:"required"`
	DisplayName string `json:"displayName" binding:"omitempty,max=120"`
	IGN         string `json:"ign" binding:"required,min=1,max=64"`
	ExternalID  string `json:"externalId" binding:"required,min=1,max=32"`
}

func NewFromCreateRequest(req CreateRegistrationRequest) Registration {
	return Registration{
		ID:           uuid.NewString(),
		EventID:      req.EventID,
		UserID:       req.UserID,
		DisplayName:  req.DisplayName,
		IGN:          req.IGN,
		ExternalID:   req.ExternalID,
		RegisteredAt: time.Now().UTC(),
	}
}
