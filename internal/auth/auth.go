// Package auth handles admin passwords, sessions and login throttling.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Manjussha/inkd/internal/db"
)

const bcryptCost = 12
const sessionCookieName = "inkd_session"

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrSessionExpired     = errors.New("auth: session expired")
)

// HashPassword hashes a plain-text password using bcrypt cost 12.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth.HashPassword: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares plain text against a bcrypt hash.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Login validates credentials, creates a session, and returns the session token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func Login(ctx context.Context, database *db.DB, username, password string, expiryHours int) (string, int, error) {
	var user db.User
	err := database.QueryRowContext(ctx,
		`SELECT id, username, password_hash FROM users WHERE username=?`, username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrInvalidCredentials
	}
	if err != nil {
		return "", 0, fmt.Errorf("auth.Login: query user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return "", 0, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", 0, fmt.Errorf("auth.Login: generate token: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(expiryHours) * time.Hour)
	_, err = database.ExecContext(ctx,
		`INSERT INTO sessions (user_id, token, expires_at) VALUES (?,?,?)`,
		user.ID, token, expiresAt,
	)
	if err != nil {
		return "", 0, fmt.Errorf("auth.Login: create session: %w", err)
	}
	return token, user.ID, nil
}

// Logout deletes a session by token.
func Logout(ctx context.Context, database *db.DB, token string) error {
	_, err := database.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token)
	if err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// ValidateSession checks the session token and returns the associated User.
func ValidateSession(ctx context.Context, database *db.DB, token string) (*db.User, error) {
	var expiresAt time.Time
	var u db.User
	err := database.QueryRowContext(ctx, `
		SELECT s.expires_at, u.id, u.username, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token=?`, token,
	).Scan(&expiresAt, &u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateSession: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, ErrSessionExpired
	}
	return &u, nil
}

// PurgeExpiredSessions deletes sessions past their expiry and returns how many went.
func PurgeExpiredSessions(ctx context.Context, database *db.DB) (int64, error) {
	res, err := database.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("auth.PurgeExpiredSessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// SeedAdmin creates the default admin user if no users exist.
func SeedAdmin(ctx context.Context, database *db.DB, username, password string) error {
	var count int
	if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("auth.SeedAdmin: count: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx, `INSERT INTO users (username, password_hash) VALUES (?,?)`, username, hash)
	if err != nil {
		return fmt.Errorf("auth.SeedAdmin: insert: %w", err)
	}
	return nil
}

// RequireAPIKey is middleware that validates a Bearer token or the session cookie.
func RequireAPIKey(database *db.DB, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			token = SessionTokenFromRequest(r)
		}
		if token == "" {
			unauthorized(w)
			return
		}
		user, err := ValidateSession(r.Context(), database, token)
		if err != nil {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
}

// SetSessionCookie writes the session cookie to the response.
// Also sets a non-HttpOnly csrf_token cookie so JS can read it for X-CSRF-Token headers.
func SetSessionCookie(w http.ResponseWriter, token string, expiryHours int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   expiryHours * 3600,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "csrf_token",
		Value:    token[:16],
		Path:     "/",
		HttpOnly: false,
		MaxAge:   expiryHours * 3600,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie removes the session and CSRF cookies.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "", Path: "/", MaxAge: -1})
}

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) *db.User {
	u, _ := ctx.Value(contextKeyUser).(*db.User)
	return u
}

// SessionTokenFromRequest extracts the session token from the cookie.
func SessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type contextKey int

const contextKeyUser contextKey = iota

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
