package handlers

import (
	"net/http"

	"github.com/Manjussha/inkd/internal/auth"
)

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ip := ClientIP(r)

	blocked, err := auth.IsBlocked(r.Context(), h.db, ip,
		h.config.BruteForceMaxAttempts, h.config.BruteForceBlockMinutes)
	if err != nil || blocked {
		fail(w, http.StatusTooManyRequests, "IP blocked due to too many failed attempts")
		return
	}

	token, userID, err := auth.Login(r.Context(), h.db, req.Username, req.Password, h.config.SessionExpiryHours)
	if err != nil {
		_ = auth.TrackAttempt(r.Context(), h.db, ip, false)
		fail(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_ = auth.TrackAttempt(r.Context(), h.db, ip, true)

	auth.SetSessionCookie(w, token, h.config.SessionExpiryHours)
	ok(w, map[string]interface{}{"user_id": userID, "token": token})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionTokenFromRequest(r)
	if token != "" {
		_ = auth.Logout(r.Context(), h.db, token)
	}
	auth.ClearSessionCookie(w)
	ok(w, map[string]string{"message": "logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		fail(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	ok(w, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}
