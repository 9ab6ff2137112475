package handlers

import (
	"net/http"
	"strconv"

	"github.com/arenadesk/arenadesk/internal/auth"
	"github.com/arenadesk/arenadesk/internal/security"
	"github.com/gin-gonic/gin"
)

// AuthHandler logs the single operator account in. Credentials come
// from configuration, not a user table.
type AuthHandler struct {
	jwt           *auth.Manager
	operatorID    string
	operatorEmail string
	passwordHash  string
}

func NewAuthHandler(jwt *auth.Manager, operatorUserID int64, operatorEmail, operatorPassword string) (*AuthHandler, error) {
	hash, err := security.HashPassword(operatorPassword)

	if err != nil {
		return nil, err
	}

	return &AuthHandler{
		jwt:           jwt,
		operatorID:    strconv.FormatInt(operatorUserID, 10),
		operatorEmail: operatorEmail,
		passwordHash:  hash,
	}, nil
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Email != h.operatorEmail {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err := security.CheckPassword(h.passwordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(h.operatorID, h.operatorEmail, "operator")

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}
