// Package api sets up the HTTP routes and middleware for inkd's REST API.
package api

import (
	"net/http"

	"github.com/Manjussha/inkd/internal/api/handlers"
	"github.com/Manjussha/inkd/internal/auth"
)

// Deps holds all dependencies injected into the API handlers.
type Deps = handlers.Deps

// SetupRoutes registers all HTTP routes on the given ServeMux.
// Uses Go 1.22 method+pattern routing syntax.
func SetupRoutes(mux *http.ServeMux, deps *Deps) {
	h := handlers.New(*deps)
	h.ApplySettings()

	requireAuth := func(next http.Handler) http.Handler {
		return auth.RequireAPIKey(deps.DB, next)
	}
	var rps float64
	var burst int
	if deps.Config != nil {
		rps, burst = deps.Config.RateLimitRPS, deps.Config.RateLimitBurst
	}
	// Each limited route gets its own buckets.
	limited := func(fn http.HandlerFunc) http.Handler {
		return RateLimit(rps, burst, fn)
	}

	// ── Public routes ────────────────────────────────────────────────────────
	mux.HandleFunc("GET /{$}", h.Root)
	mux.Handle("POST /api/humanize", limited(h.Humanize))
	mux.HandleFunc("GET /api/tones", h.ListTones)
	mux.HandleFunc("GET /api/credits/{userId}", h.GetCredits)

	// PayPal purchase flow
	mux.Handle("POST /api/paypal/pay", limited(h.PayPalPay))
	mux.HandleFunc("GET /api/paypal/success", h.PayPalSuccess)
	mux.HandleFunc("GET /api/paypal/cancel", h.PayPalCancel)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	// Admin session
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)

	// ── Protected routes ─────────────────────────────────────────────────────
	mux.Handle("GET /api/v1/auth/me", requireAuth(http.HandlerFunc(h.Me)))
	mux.Handle("GET /api/v1/status", requireAuth(http.HandlerFunc(h.Status)))

	// Credits
	mux.Handle("GET /api/v1/credits/{userId}", requireAuth(http.HandlerFunc(h.AdminGetCredits)))
	mux.Handle("PUT /api/v1/credits/{userId}", requireAuth(csrfGuard(http.HandlerFunc(h.GrantCredits))))

	// Usage + logs
	mux.Handle("GET /api/v1/usage", requireAuth(http.HandlerFunc(h.GetUsage)))
	mux.Handle("GET /api/v1/logs", requireAuth(http.HandlerFunc(h.ListLogs)))

	// Webhooks
	mux.Handle("GET /api/v1/webhooks", requireAuth(http.HandlerFunc(h.ListWebhooks)))
	mux.Handle("POST /api/v1/webhooks", requireAuth(csrfGuard(http.HandlerFunc(h.CreateWebhook))))
	mux.Handle("GET /api/v1/webhooks/{id}", requireAuth(http.HandlerFunc(h.GetWebhook)))
	mux.Handle("PUT /api/v1/webhooks/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.UpdateWebhook))))
	mux.Handle("DELETE /api/v1/webhooks/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.DeleteWebhook))))
	mux.Handle("POST /api/v1/webhooks/{id}/test", requireAuth(csrfGuard(http.HandlerFunc(h.TestWebhook))))

	// Settings
	mux.Handle("GET /api/v1/settings", requireAuth(http.HandlerFunc(h.ListSettings)))
	mux.Handle("PUT /api/v1/settings/{key}", requireAuth(csrfGuard(http.HandlerFunc(h.UpdateSetting))))

	// Maintenance jobs
	mux.Handle("GET /api/v1/jobs", requireAuth(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /api/v1/jobs/{name}/run", requireAuth(csrfGuard(http.HandlerFunc(h.RunJob))))

	// Live events
	if deps.Hub != nil {
		mux.Handle("GET /ws", requireAuth(http.HandlerFunc(deps.Hub.ServeWS)))
	}
}

// csrfGuard enforces X-CSRF-Token header on mutating requests.
func csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			http.Error(w, `{"success":false,"error":"missing CSRF token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORS allows browser calls from origin ("*" for any). Preflight
// requests are answered here and never reach next.
func CORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		if origin != "*" {
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
