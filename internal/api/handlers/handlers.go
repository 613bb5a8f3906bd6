// Package handlers provides HTTP handler implementations for the inkd API.
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/Manjussha/inkd/internal/config"
	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/db"
	"github.com/Manjussha/inkd/internal/humanize"
	"github.com/Manjussha/inkd/internal/metrics"
	"github.com/Manjussha/inkd/internal/notify"
	"github.com/Manjussha/inkd/internal/payment"
	"github.com/Manjussha/inkd/internal/scheduler"
	"github.com/Manjussha/inkd/internal/tone"
	"github.com/Manjussha/inkd/internal/usage"
	"github.com/Manjussha/inkd/internal/webhook"
	"github.com/Manjussha/inkd/internal/ws"
)

// Deps holds everything the handlers need. Optional fields may be nil.
type Deps struct {
	DB        *db.DB
	Config    *config.Config
	Version   string
	Humanizer *humanize.Service
	Ledger    credit.Ledger
	Catalog   tone.Source
	Payments  *payment.Service
	Metrics   *metrics.Metrics
	Usage     *usage.Recorder
	Governor  *usage.Governor
	Hub       *ws.Hub
	Notify    *notify.Dispatcher
	Webhook   *webhook.Dispatcher
	Scheduler *scheduler.Engine
}

// Handler holds all shared dependencies for API handler methods.
type Handler struct {
	db        *db.DB
	config    *config.Config
	version   string
	started   time.Time
	humanizer *humanize.Service
	ledger    credit.Ledger
	catalog   tone.Source
	payments  *payment.Service
	metrics   *metrics.Metrics
	usage     *usage.Recorder
	governor  *usage.Governor
	hub       *ws.Hub
	notify    *notify.Dispatcher
	webhook   *webhook.Dispatcher
	scheduler *scheduler.Engine
}

// New creates a Handler from d.
func New(d Deps) *Handler {
	return &Handler{
		db:        d.DB,
		config:    d.Config,
		version:   d.Version,
		started:   time.Now(),
		humanizer: d.Humanizer,
		ledger:    d.Ledger,
		catalog:   d.Catalog,
		payments:  d.Payments,
		metrics:   d.Metrics,
		usage:     d.Usage,
		governor:  d.Governor,
		hub:       d.Hub,
		notify:    d.Notify,
		webhook:   d.Webhook,
		scheduler: d.Scheduler,
	}
}

// ── Response helpers ──────────────────────────────────────────────────────────

// Admin routes use the success/data/error envelope. Public routes
// (humanize, credits, paypal) write flat bodies with writeJSON.

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type paginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    pageMeta    `json:"meta"`
}

type pageMeta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func ok(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func okPaginated(w http.ResponseWriter, data interface{}, total, page, limit int) {
	writeJSON(w, http.StatusOK, paginatedResponse{
		Success: true,
		Data:    data,
		Meta:    pageMeta{Total: total, Page: page, Limit: limit},
	})
}

func fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, response{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v)
}

func pathID(r *http.Request, name string) string {
	return r.PathValue(name)
}

// ClientIP strips the port from RemoteAddr so lockouts and rate limits
// apply per host.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
