package handlers

import (
	"net/http"
	"time"
)

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := time.Now().Format("2006-01-02")

	var requestsToday, wordsToday, failuresToday, accounts int64
	if h.usage != nil {
		requestsToday, wordsToday, _ = h.usage.Totals(ctx, today)
	}
	_ = h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM word_usage WHERE status='failed' AND date=?`, today).Scan(&failuresToday)
	_ = h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_credits`).Scan(&accounts)

	wsClients := 0
	if h.hub != nil {
		wsClients = h.hub.ClientCount()
	}
	jobs := 0
	if h.scheduler != nil {
		jobs = len(h.scheduler.Jobs())
	}

	ok(w, map[string]interface{}{
		"version":        h.version,
		"ledger":         h.config.LedgerKind,
		"model":          h.config.OpenAIModel,
		"provider_ready": h.config.OpenAIKey != "",
		"paypal_ready":   h.payments != nil && h.payments.Configured(),
		"requests_today": requestsToday,
		"words_today":    wordsToday,
		"failures_today": failuresToday,
		"accounts":       accounts,
		"ws_clients":     wsClients,
		"scheduled_jobs": jobs,
		"started_at":     h.started.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
