package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Manjussha/inkd/internal/auth"
	"github.com/Manjussha/inkd/internal/db"
)

// Job names registered by RegisterMaintenance.
const (
	JobPurgeSessions = "purge_sessions"
	JobCleanAttempts = "clean_login_attempts"
	JobDailySummary  = "daily_summary"
)

// Totaler reports a day's request and word totals.
type Totaler interface {
	Totals(ctx context.Context, date string) (requests, words int64, err error)
}

// Messenger sends an operator message.
type Messenger interface {
	SendTelegram(msg string)
}

// RegisterMaintenance adds the housekeeping jobs: hourly session and
// login-attempt cleanup and a usage summary at 23:55 each day.
func RegisterMaintenance(e *Engine, database *db.DB, totals Totaler, msg Messenger) error {
	if err := e.Add(JobPurgeSessions, "0 0 * * * *", func(ctx context.Context) error {
		n, err := auth.PurgeExpiredSessions(ctx, database)
		if n > 0 {
			log.Printf("scheduler: purged %d expired sessions", n)
		}
		return err
	}); err != nil {
		return err
	}
	if err := e.Add(JobCleanAttempts, "0 30 * * * *", func(ctx context.Context) error {
		_, err := auth.CleanOldAttempts(ctx, database)
		return err
	}); err != nil {
		return err
	}
	return e.Add(JobDailySummary, "0 55 23 * * *", func(ctx context.Context) error {
		date := time.Now().Format("2006-01-02")
		reqs, words, err := totals.Totals(ctx, date)
		if err != nil {
			return err
		}
		if msg != nil {
			msg.SendTelegram(fmt.Sprintf("📊 %s: %d requests, %d words charged.", date, reqs, words))
		}
		return nil
	})
}
