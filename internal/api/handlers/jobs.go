package handlers

import (
	"net/http"
)

// ListJobs handles GET /api/v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		ok(w, []interface{}{})
		return
	}
	ok(w, h.scheduler.Jobs())
}

// RunJob handles POST /api/v1/jobs/{name}/run.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		fail(w, http.StatusServiceUnavailable, "scheduler not initialized")
		return
	}
	name := pathID(r, "name")
	if err := h.scheduler.RunNow(name); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	ok(w, map[string]string{"message": name + " finished"})
}
