package event

import (
	"errors"
	"time"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusScheduled Status = "scheduled"
	StatusFinished  Status = "finished"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusScheduled, StatusFinished:
		return true
	default:
		return false
	}
}

// Room carries the match credentials an operator reveals to registrants.
// Seq increments every time a room is set, so jobs scheduled against an
// older room can tell at dispatch time that they are stale.
type Room struct {
	Code     string    `json:"code"`
	Passcode string    `json:"passcode"`
	RevealAt time.Time `json:"revealAt"`
	Seq      int       `json:"seq"`
}

type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	StartAt   time.Time `json:"startAt"`
	MaxSlots  int       `json:"maxSlots"`
	Status    Status    `json:"status"`
	Room      *Room     `json:"room,omitempty"`
	Winner    *string   `json:"winner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	ErrNotFound          = errors.New("event not found")
	ErrInvalidID         = errors.New("invalid event id")
	ErrNotOpen           = errors.New("event is not open for registration")
	ErrInvalidTransition = errors.New("invalid event status transition")
)

type CreateEventRequest struct {
	Name     string    `json:"name" binding:"required,min=3,max=120"`
	Format   string    `json:"format" binding:"required,min=2,max=40"`
	StartAt  time.Time `json:"startAt" binding:"required"`
	MaxSlots int       `json:"maxSlots" binding:"required,min=1,max=10000"`
}
