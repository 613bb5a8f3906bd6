package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/inkd/internal/db"
)

func newDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "inkd_auth_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestLoginLogout(t *testing.T) {
	database := newDB(t)
	ctx := context.Background()
	require.NoError(t, SeedAdmin(ctx, database, "admin", "s3cret"))
	// Second seed is a no-op.
	require.NoError(t, SeedAdmin(ctx, database, "other", "x"))

	_, _, err := Login(ctx, database, "admin", "wrong", 1)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = Login(ctx, database, "other", "x", 1)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, uid, err := Login(ctx, database, "admin", "s3cret", 1)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.NotZero(t, uid)

	u, err := ValidateSession(ctx, database, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	require.NoError(t, Logout(ctx, database, token))
	_, err = ValidateSession(ctx, database, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSessionsArePurged(t *testing.T) {
	database := newDB(t)
	ctx := context.Background()
	require.NoError(t, SeedAdmin(ctx, database, "admin", "pw"))

	token, _, err := Login(ctx, database, "admin", "pw", -1)
	require.NoError(t, err)
	_, err = ValidateSession(ctx, database, token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	n, err := PurgeExpiredSessions(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRequireAPIKey(t *testing.T) {
	database := newDB(t)
	ctx := context.Background()
	require.NoError(t, SeedAdmin(ctx, database, "admin", "pw"))
	token, _, err := Login(ctx, database, "admin", "pw", 1)
	require.NoError(t, err)

	h := RequireAPIKey(database, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "admin", UserFromContext(r.Context()).Username)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBruteForce(t *testing.T) {
	database := newDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, TrackAttempt(ctx, database, "1.2.3.4", false))
	}
	require.NoError(t, TrackAttempt(ctx, database, "1.2.3.4", true))

	blocked, err := IsBlocked(ctx, database, "1.2.3.4", 3, 15)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = IsBlocked(ctx, database, "5.6.7.8", 3, 15)
	require.NoError(t, err)
	assert.False(t, blocked)

	n, err := CleanOldAttempts(ctx, database)
	require.NoError(t, err)
	assert.Zero(t, n)
}
