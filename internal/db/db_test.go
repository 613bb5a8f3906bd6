package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "inkd_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return database
}

func TestMigrate_Idempotent(t *testing.T) {
	database := newTestDB(t)
	require.NoError(t, database.Migrate())
	assert.Equal(t, "1", database.GetSetting("schema_version", ""))
	assert.Equal(t, "500", database.GetSetting("low_credit_threshold", ""))
}

func TestSettings(t *testing.T) {
	database := newTestDB(t)
	assert.Equal(t, "fallback", database.GetSetting("missing", "fallback"))

	require.NoError(t, database.SetSetting("low_credit_threshold", "100"))
	require.NoError(t, database.Migrate())
	assert.Equal(t, "100", database.GetSetting("low_credit_threshold", ""))
}

func TestUserCredits_NonNegativeCheck(t *testing.T) {
	database := newTestDB(t)
	_, err := database.Exec(`INSERT INTO user_credits (user_id, word_credits) VALUES ('u1', 3)`)
	require.NoError(t, err)

	_, err = database.Exec(`UPDATE user_credits SET word_credits = word_credits - 4 WHERE user_id='u1'`)
	assert.Error(t, err)

	var balance int64
	require.NoError(t, database.QueryRow(`SELECT word_credits FROM user_credits WHERE user_id='u1'`).Scan(&balance))
	assert.Equal(t, int64(3), balance)
}

func TestWriteLog(t *testing.T) {
	database := newTestDB(t)
	database.WriteLog("u1", "info", "hello")

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM logs WHERE user_id='u1'`).Scan(&n))
	assert.Equal(t, 1, n)
}
