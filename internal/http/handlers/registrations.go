package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
	"github.com/gin-gonic/gin"
)

type Registrar interface {
	Register(ctx context.Context, eventID string, userID int64, displayName, ign, externalID string) (registration.Registration, error)
}

type RegistrationLister interface {
	ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type RegistrationHandler struct {
	guard  Registrar
	lister RegistrationLister
}

func NewRegistrationHandler(guard Registrar, lister RegistrationLister) *RegistrationHandler {
	return &RegistrationHandler{guard: guard, lister: lister}
}

func (h *RegistrationHandler) Register(ctx *gin.Context) {
	eventID := ctx.Param("id")

	var req registration.CreateRegistrationRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	reg, err := h.guard.Register(cctx, eventID, req.UserID, req.DisplayName, req.IGN, req.ExternalID)

	if err != nil {
		switch {
		case errors.Is(err, event.ErrInvalidID):
			RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		case errors.Is(err, event.ErrNotOpen):
			RespondConflict(ctx, "registration_closed", "registration for this event is closed.")
		case errors.Is(err, registration.ErrAlreadyRegistered):
			RespondConflict(ctx, "already_registered", "this player is already registered for this event.")
		case errors.Is(err, registration.ErrSlotsFull):
			RespondConflict(ctx, "slots_full", "this event is already at full capacity.")
		default:
			RespondInternal(ctx, "Could not register for event")
		}
		return
	}

	ctx.JSON(http.StatusCreated, reg)
}

func (h *RegistrationHandler) ListForEvent(ctx *gin.Context) {
	eventID := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	regs, err := h.lister.ListRegistrations(cctx, eventID)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrInvalidID):
			RespondBadRequest(ctx, "event id must be a valid UUID", nil)
		case errors.Is(err, event.ErrNotFound):
			RespondNotFound(ctx, "Event not found")
		default:
			RespondInternal(ctx, "Could not list registrations")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"eventId":       eventID,
		"count":         len(regs),
		"registrations": regs,
	})
}
