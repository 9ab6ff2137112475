package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/arenadesk/arenadesk/internal/config"
	"github.com/arenadesk/arenadesk/internal/domain/grant"
	"github.com/gin-gonic/gin"
)

type GrantService interface {
	GrantAccess(ctx context.Context, userID int64, hours int) (grant.Grant, error)
	ListGrants(ctx context.Context) ([]grant.Grant, error)
}

type GrantsHandler struct {
	svc GrantService
}

func NewGrantsHandler(svc GrantService) *GrantsHandler {
	return &GrantsHandler{svc: svc}
}

type CreateGrantRequest struct {
	UserID int64 `json:"userId" binding:"required"`
	Hours  int   `json:"hours" binding:"required,min=1,max=8760"`
}

func (h *GrantsHandler) CreateGrant(ctx *gin.Context) {
	var req CreateGrantRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	g, err := h.svc.GrantAccess(cctx, req.UserID, req.Hours)

	if err != nil {
		if errors.Is(err, grant.ErrInvalidDuration) {
			RespondBadRequest(ctx, "grant duration must be positive", nil)
			return
		}
		RespondInternal(ctx, "Could not create grant")
		return
	}

	ctx.JSON(http.StatusCreated, g)
}

func (h *GrantsHandler) ListGrants(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	grants, err := h.svc.ListGrants(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list grants")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": grants,
		"count": len(grants),
	})
}
