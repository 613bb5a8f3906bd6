package usage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/inkd/internal/db"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "inkd_usage_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	return NewRecorder(database)
}

func TestRecorder_RecordAndReport(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, Entry{RequestID: "a", UserID: "u1", TonePreset: "formal", Words: 5}))
	require.NoError(t, r.Record(ctx, Entry{RequestID: "b", UserID: "u1", Words: 3, Status: StatusFailed, Error: "boom"}))
	require.NoError(t, r.Record(ctx, Entry{RequestID: "c", UserID: "u2", Words: 7}))

	rep, err := r.Report(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "daily", rep.Period)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "u1", rep.Rows[0].UserID)
	assert.Equal(t, int64(2), rep.Rows[0].Requests)
	assert.Equal(t, int64(1), rep.Rows[0].Failures)
	assert.Equal(t, int64(8), rep.Rows[0].Words)

	rep, err = r.Report(ctx, "weekly", "u2")
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, int64(7), rep.Rows[0].Words)

	reqs, words, err := r.Totals(ctx, time.Now().Format("2006-01-02"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), reqs)
	assert.Equal(t, int64(15), words)
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p, s := Since("weekly", now)
	assert.Equal(t, "weekly", p)
	assert.Equal(t, "2026-03-08", s)
	p, s = Since("monthly", now)
	assert.Equal(t, "monthly", p)
	assert.Equal(t, "2026-02-15", s)
	p, s = Since("yearly", now)
	assert.Equal(t, "daily", p)
	assert.Equal(t, "2026-03-15", s)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Alert
}

func (n *recordingNotifier) Send(event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if a, ok := payload.(*Alert); ok && event == EventCreditLow {
		n.events = append(n.events, *a)
	}
}

func TestGovernor_AlertsOnlyOnEscalation(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGovernor(100, n)

	assert.Equal(t, ZoneOK, g.ZoneFor(100))
	assert.Equal(t, ZoneLow, g.ZoneFor(99))
	assert.Equal(t, ZoneEmpty, g.ZoneFor(0))

	assert.Nil(t, g.Check("u1", 500))
	require.NotNil(t, g.Check("u1", 50))
	assert.Nil(t, g.Check("u1", 40), "same zone must not re-alert")
	a := g.Check("u1", 0)
	require.NotNil(t, a)
	assert.Equal(t, "EMPTY", a.Zone)

	g.Reset("u1")
	require.NotNil(t, g.Check("u1", 10))

	require.Len(t, n.events, 3)
	assert.Equal(t, "LOW", n.events[0].Zone)
	assert.Equal(t, int64(50), n.events[0].Balance)
}

func TestGovernor_NilNotifier(t *testing.T) {
	g := NewGovernor(10, nil)
	assert.NotNil(t, g.Check("u1", 1))
}

func TestGovernor_ForgetsRecoveredCallers(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGovernor(100, n)

	for i := 0; i < 50; i++ {
		assert.Nil(t, g.Check(fmt.Sprintf("u%d", i), 500))
	}
	require.NotNil(t, g.Check("u1", 10))

	g.mu.Lock()
	assert.Len(t, g.lastZone, 1)
	g.mu.Unlock()

	assert.Nil(t, g.Check("u1", 500))
	g.mu.Lock()
	assert.Empty(t, g.lastZone)
	g.mu.Unlock()

	require.NotNil(t, g.Check("u1", 10), "re-entering LOW after recovery alerts again")
	assert.Len(t, n.events, 2)
}
