package handlers

import (
	"net/http"
	"strconv"
	"time"
)

type logRow struct {
	ID        int       `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLogs handles GET /api/v1/logs.
// Query params: user_id, level, limit, page.
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := 100
	page := 1
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	offset := (page - 1) * limit

	where := " WHERE 1=1"
	args := []interface{}{}
	if v := q.Get("user_id"); v != "" {
		where += " AND user_id=?"
		args = append(args, v)
	}
	if v := q.Get("level"); v != "" {
		where += " AND level=?"
		args = append(args, v)
	}

	var total int
	_ = h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+where, args...).Scan(&total)

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, user_id, level, message, created_at FROM logs"+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	logs := []logRow{}
	for rows.Next() {
		var l logRow
		if err := rows.Scan(&l.ID, &l.UserID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	okPaginated(w, logs, total, page, limit)
}
