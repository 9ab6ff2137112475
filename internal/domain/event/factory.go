package event

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateEventRequest) Event {
	now := time.Now().UTC()

	return Event{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Format:    req.Format,
		StartAt:   req.StartAt,
		MaxSlots:  req.MaxSlots,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
