package handlers

import (
	"net/http"
	"strconv"
)

// SettingLowCreditThreshold overrides LOW_CREDIT_THRESHOLD at runtime.
const SettingLowCreditThreshold = "low_credit_threshold"

// ListSettings handles GET /api/v1/settings.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `SELECT key, value FROM settings WHERE key != 'schema_version' ORDER BY key`)
	if err != nil {
		fail(w, http.StatusInternalServerError, "query: "+err.Error())
		return
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		settings[k] = v
	}
	if h.governor != nil {
		settings[SettingLowCreditThreshold] = strconv.FormatInt(h.governor.Threshold(), 10)
	}
	ok(w, settings)
}

// UpdateSetting handles PUT /api/v1/settings/{key}.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := pathID(r, "key")
	if key == "" || key == "schema_version" {
		fail(w, http.StatusBadRequest, "invalid key")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	var threshold int64 = -1
	if key == SettingLowCreditThreshold {
		n, err := strconv.ParseInt(req.Value, 10, 64)
		if err != nil || n < 0 {
			fail(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	if err := h.db.SetSetting(key, req.Value); err != nil {
		fail(w, http.StatusInternalServerError, "set: "+err.Error())
		return
	}
	// Apply only what was persisted, so a restart sees the same value.
	if threshold >= 0 && h.governor != nil {
		h.governor.SetThreshold(threshold)
	}
	ok(w, map[string]string{"key": key, "value": req.Value})
}

// ApplySettings loads persisted overrides into running components.
func (h *Handler) ApplySettings() {
	if h.governor == nil {
		return
	}
	if v := h.db.GetSetting(SettingLowCreditThreshold, ""); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			h.governor.SetThreshold(n)
		}
	}
}
