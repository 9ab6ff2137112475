package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/auth"
	"github.com/arenadesk/arenadesk/internal/http/handlers"
)

func TestLoginHandler(t *testing.T) {
	jwt := auth.NewManager("test-secret", 15*time.Minute)

	h, err := handlers.NewAuthHandler(jwt, 1000, "ops@arenadesk.io", "correct horse")
	if err != nil {
		t.Fatalf("NewAuthHandler: %v", err)
	}

	r := setupRouter(http.MethodPost, "/auth/login", h.Login)

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
	}{
		{
			name:           "success",
			body:           `{"email": "ops@arenadesk.io", "password": "correct horse"}`,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "wrong_password",
			body:           `{"email": "ops@arenadesk.io", "password": "battery staple"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_email",
			body:           `{"email": "intruder@arenadesk.io", "password": "correct horse"}`,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "malformed_email",
			body:           `{"email": "not-an-email", "password": "correct horse"}`,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/auth/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode != http.StatusOK {
				return
			}

			var resp struct {
				AccessToken string `json:"accessToken"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}

			claims, err := jwt.VerifyAccessToken(resp.AccessToken)
			if err != nil {
				t.Fatalf("issued token did not verify: %v", err)
			}

			if claims.UserID != "1000" {
				t.Errorf("claims.UserID = %q, want %q", claims.UserID, "1000")
			}
			if claims.Role != "operator" {
				t.Errorf("claims.Role = %q, want %q", claims.Role, "operator")
			}
		})
	}
}
