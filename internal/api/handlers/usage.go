package handlers

import "net/http"

// GetUsage handles GET /api/v1/usage.
// Query params: period=daily|weekly|monthly, user_id.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := h.usage.Report(r.Context(), q.Get("period"), q.Get("user_id"))
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	ok(w, rep)
}
