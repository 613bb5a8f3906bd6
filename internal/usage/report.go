package usage

import (
	"context"
	"fmt"
	"time"
)

// Row is one aggregated line of the usage report.
type Row struct {
	Date     string `json:"date"`
	UserID   string `json:"user_id"`
	Requests int64  `json:"requests"`
	Failures int64  `json:"failures"`
	Words    int64  `json:"words"`
}

// Report is the result of a usage query.
type Report struct {
	Period string `json:"period"`
	Since  string `json:"since"`
	Rows   []Row  `json:"rows"`
}

// Since returns the first date covered by period (daily, weekly or monthly).
// Unknown periods are treated as daily.
func Since(period string, now time.Time) (string, string) {
	switch period {
	case "weekly":
		return period, now.AddDate(0, 0, -7).Format("2006-01-02")
	case "monthly":
		return period, now.AddDate(0, -1, 0).Format("2006-01-02")
	default:
		return "daily", now.Format("2006-01-02")
	}
}

// Report aggregates word_usage by date and caller. userID is optional.
func (r *Recorder) Report(ctx context.Context, period, userID string) (*Report, error) {
	period, since := Since(period, r.now())

	query := `SELECT date, user_id, COUNT(*),
		SUM(CASE WHEN status != 'ok' THEN 1 ELSE 0 END),
		SUM(words)
		FROM word_usage WHERE date >= ?`
	args := []interface{}{since}
	if userID != "" {
		query += " AND user_id=?"
		args = append(args, userID)
	}
	query += " GROUP BY date, user_id ORDER BY date DESC, user_id"

	rows, err := r.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("usage.Report: query: %w", err)
	}
	defer rows.Close()

	rep := &Report{Period: period, Since: since, Rows: []Row{}}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.Date, &row.UserID, &row.Requests, &row.Failures, &row.Words); err != nil {
			return nil, fmt.Errorf("usage.Report: scan: %w", err)
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, rows.Err()
}

// Totals sums requests and words charged on a single date.
func (r *Recorder) Totals(ctx context.Context, date string) (requests, words int64, err error) {
	err = r.database.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(words), 0) FROM word_usage WHERE date=?`, date,
	).Scan(&requests, &words)
	if err != nil {
		return 0, 0, fmt.Errorf("usage.Totals: %w", err)
	}
	return requests, words, nil
}
