package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/lifecycle"
	"github.com/gin-gonic/gin"
)

type EventService interface {
	CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	GetEvent(ctx context.Context, id string) (event.Event, error)
	ListEvents(ctx context.Context) ([]event.Event, error)
	CloseRegistration(ctx context.Context, id string) (event.Event, error)
	SetRoom(ctx context.Context, id, code, passcode string, revealAt time.Time) (event.Event, error)
	AnnounceWinner(ctx context.Context, id, winner string) (event.Event, error)
}

type EventsHandler struct {
	svc EventService
}

func NewEventsHandler(svc EventService) *EventsHandler {
	return &EventsHandler{svc: svc}
}

// PublicEvent is the shape served on the unauthenticated read routes.
// Room credentials never appear here; registrants receive them through
// the timed reveal broadcast, not the API.
type PublicEvent struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Format    string       `json:"format"`
	StartAt   time.Time    `json:"startAt"`
	MaxSlots  int          `json:"maxSlots"`
	Status    event.Status `json:"status"`
	Winner    *string      `json:"winner,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func publicView(e event.Event) PublicEvent {
	return PublicEvent{
		ID:        e.ID,
		Name:      e.Name,
		Format:    e.Format,
		StartAt:   e.StartAt,
		MaxSlots:  e.MaxSlots,
		Status:    e.Status,
		Winner:    e.Winner,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.svc.CreateEvent(cctx, req)

	if err != nil {
		RespondInternal(ctx, "Could not create event")
		return
	}

	ctx.JSON(http.StatusCreated, e)
}

func (h *EventsHandler) ListEvents(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	events, err := h.svc.ListEvents(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list events")

		return
	}

	items := make([]PublicEvent, 0, len(events))
	for _, e := range events {
		items = append(items, publicView(e))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *EventsHandler) GetEventById(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.svc.GetEvent(cctx, id)

	if err != nil {
		respondEventError(ctx, err, "Could not fetch event")
		return
	}

	ctx.JSON(http.StatusOK, publicView(e))
}

func (h *EventsHandler) CloseRegistration(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.svc.CloseRegistration(cctx, id)

	if err != nil {
		respondEventError(ctx, err, "Could not close registration")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

type SetRoomRequest struct {
	Code     string `json:"code" binding:"required,min=1,max=64"`
	Passcode string `json:"passcode" binding:"required,min=1,max=64"`

	// either an absolute timestamp or an HH:MM wall-clock time
	RevealAt   *time.Time `json:"revealAt"`
	RevealTime string     `json:"revealTime" binding:"omitempty,len=5"`
}

func (h *EventsHandler) SetRoom(ctx *gin.Context) {
	id := ctx.Param("id")

	var req SetRoomRequest

	if !BindJSON(ctx, &req) {
		return
	}

	var revealAt time.Time

	switch {
	case req.RevealAt != nil:
		revealAt = *req.RevealAt
	case req.RevealTime != "":
		at, err := lifecycle.ParseRevealTime(time.Now(), req.RevealTime)
		if err != nil {
			RespondBadRequest(ctx, "Invalid reveal time", gin.H{"revealTime": "use HH:MM (24-hour)"})
			return
		}
		revealAt = at
	default:
		RespondBadRequest(ctx, "Missing reveal time", gin.H{"revealAt": "provide revealAt or revealTime"})
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.svc.SetRoom(cctx, id, req.Code, req.Passcode, revealAt)

	if err != nil {
		respondEventError(ctx, err, "Could not set room")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

type AnnounceWinnerRequest struct {
	Winner string `json:"winner" binding:"required,min=1,max=120"`
}

func (h *EventsHandler) AnnounceWinner(ctx *gin.Context) {
	id := ctx.Param("id")

	var req AnnounceWinnerRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	e, err := h.svc.AnnounceWinner(cctx, id, req.Winner)

	if err != nil {
		respondEventError(ctx, err, "Could not announce winner")
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func respondEventError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, event.ErrInvalidID):
		RespondBadRequest(ctx, "event id must be a valid UUID", nil)
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	case errors.Is(err, event.ErrInvalidTransition):
		RespondConflict(ctx, "invalid_transition", "the event status does not allow this operation")
	default:
		RespondInternal(ctx, fallback)
	}
}
