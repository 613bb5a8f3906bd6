// Package usage records transformation outcomes, reports on them and watches
// caller balances for low-credit alerts.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/Manjussha/inkd/internal/db"
)

// Outcome statuses stored in word_usage.status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one transformation attempt that reached the debit step.
type Entry struct {
	RequestID  string
	UserID     string
	TonePreset string
	Words      int64
	Status     string
	Error      string
}

// Recorder writes Entries to the word_usage table.
type Recorder struct {
	database *db.DB
	now      func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(database *db.DB) *Recorder {
	return &Recorder{database: database, now: time.Now}
}

// Record saves one entry, dated in local time.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if e.Status == "" {
		e.Status = StatusOK
	}
	_, err := r.database.ExecContext(ctx, `
		INSERT INTO word_usage (request_id, user_id, tone_preset, words, status, error, date)
		VALUES (?,?,?,?,?,?,?)`,
		e.RequestID, e.UserID, e.TonePreset, e.Words, e.Status, e.Error,
		r.now().Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("usage.Record: %w", err)
	}
	return nil
}
