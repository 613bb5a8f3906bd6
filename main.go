// inkd — credit-metered text humanizer.
// Entry point: wires all packages and starts the HTTP server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Manjussha/inkd/internal/api"
	"github.com/Manjussha/inkd/internal/auth"
	"github.com/Manjussha/inkd/internal/config"
	"github.com/Manjussha/inkd/internal/humanize"
	"github.com/Manjussha/inkd/internal/metrics"
	"github.com/Manjussha/inkd/internal/notify"
	"github.com/Manjussha/inkd/internal/payment"
	"github.com/Manjussha/inkd/internal/platform"
	"github.com/Manjussha/inkd/internal/provider"
	"github.com/Manjussha/inkd/internal/scheduler"
	"github.com/Manjussha/inkd/internal/telegram"
	"github.com/Manjussha/inkd/internal/tone"
	"github.com/Manjussha/inkd/internal/usage"
	"github.com/Manjussha/inkd/internal/webhook"
	"github.com/Manjussha/inkd/internal/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// serve wires every package and runs the HTTP server until SIGINT/SIGTERM.
func serve() error {
	log.Printf("inkd %s starting…", Version)

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg := config.Load()
	log.Printf("Config: port=%s workDir=%s ledger=%s model=%s", cfg.Port, cfg.WorkDir, cfg.LedgerKind, cfg.OpenAIModel)

	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		log.Println("⚠  No .env found — using built-in defaults (admin / changeme, port 5000)")
		log.Println("   Run 'inkd setup' to configure before going to production.")
	}
	if cfg.OpenAIKey == "" {
		log.Println("⚠  OPENAI_API_KEY is not set — /api/humanize will fail after charging.")
	}

	// ── 2. Ensure work directory exists ─────────────────────────────────────
	if err := platform.EnsureDir(cfg.WorkDir); err != nil {
		return fmt.Errorf("EnsureDir %s: %w", cfg.WorkDir, err)
	}

	// ── 3. Open database + migrate ───────────────────────────────────────────
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Printf("Database ready: %s", cfg.DBPath)

	// Root context — cancelled on shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 4. Seed default admin user ───────────────────────────────────────────
	if err := auth.SeedAdmin(ctx, database, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("SeedAdmin: %w", err)
	}

	// ── 5. Credit ledger ─────────────────────────────────────────────────────
	ledger, closeLedger, err := openLedger(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeLedger()

	// ── 6. WebSocket hub ─────────────────────────────────────────────────────
	hub := ws.NewHub()
	go hub.Run(ctx)
	log.SetOutput(io.MultiWriter(os.Stderr, hub))

	// ── 7. Notify + Webhook dispatchers ─────────────────────────────────────
	webhookDispatcher := webhook.New(database)
	notifier := notify.New(nil, webhookDispatcher)
	notifier.SetLive(hub)

	// ── 8. Usage recorder + low-credit governor ──────────────────────────────
	recorder := usage.NewRecorder(database)
	governor := usage.NewGovernor(cfg.LowCreditThreshold, notifier)

	// ── 9. Telegram bot ──────────────────────────────────────────────────────
	onGrant := func(userID string, balance int64) {
		governor.Reset(userID)
		hub.BroadcastEvent(ws.TypeCreditGranted, map[string]interface{}{"user_id": userID, "balance": balance})
		database.WriteLog(userID, "info", fmt.Sprintf("granted via telegram, balance %d", balance))
	}
	cmdHandler := telegram.NewCommandHandler(ledger, recorder, onGrant)
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, cmdHandler)
	if err != nil {
		log.Printf("Telegram init error (continuing without Telegram): %v", err)
	}
	if bot != nil {
		notifier.SetTelegram(bot)
		go bot.Start(ctx)
		log.Printf("Telegram bot started (chatID=%d)", cfg.TelegramChatID)
	}

	// ── 10. Tone presets + metrics + transformation orchestrator ─────────────
	catalog := tone.NewLive(tone.Default())
	if cfg.TonePresetsFile != "" {
		if err := catalog.LoadFile(cfg.TonePresetsFile); err != nil {
			return err
		}
		if err := catalog.Watch(ctx, cfg.TonePresetsFile); err != nil {
			log.Printf("Tone presets will not hot-reload: %v", err)
		}
		log.Printf("Tone presets loaded from %s: %v", cfg.TonePresetsFile, catalog.IDs())
	}
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}
	gen := provider.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel)
	opts := humanize.Options{
		Timeout:         cfg.ProviderTimeout,
		RefundOnFailure: cfg.RefundOnFailure,
		Recorder:        recorder,
		Watcher:         governor,
		Events:          hub,
	}
	if m != nil {
		opts.Observer = m
	}
	humanizer := humanize.New(ledger, catalog, gen, opts)

	// ── 11. PayPal purchase flow ─────────────────────────────────────────────
	payments := payment.NewService(payment.NewClient(payment.Config{
		Mode:          cfg.PayPalMode,
		ClientID:      cfg.PayPalClientID,
		ClientSecret:  cfg.PayPalClientSecret,
		MerchantEmail: cfg.PayPalMerchantEmail,
		ReturnURL:     cfg.PayPalReturnURL,
		CancelURL:     cfg.PayPalCancelURL,
		Currency:      cfg.PayPalCurrency,
	}), payment.NewStore(database), notifier)
	if !cfg.PayPalConfigured() {
		log.Println("PayPal not configured — /api/paypal/pay will return an error.")
	}

	// ── 12. Cron scheduler ───────────────────────────────────────────────────
	schedEngine := scheduler.New()
	if err := scheduler.RegisterMaintenance(schedEngine, database, recorder, notifier); err != nil {
		return fmt.Errorf("scheduler.RegisterMaintenance: %w", err)
	}
	schedEngine.Start(ctx)

	// ── 13. HTTP router ──────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.SetupRoutes(mux, &api.Deps{
		DB:        database,
		Config:    cfg,
		Version:   Version,
		Humanizer: humanizer,
		Ledger:    ledger,
		Catalog:   catalog,
		Payments:  payments,
		Metrics:   m,
		Usage:     recorder,
		Governor:  governor,
		Hub:       hub,
		Notify:    notifier,
		Webhook:   webhookDispatcher,
		Scheduler: schedEngine,
	})

	// CORS + recovery + logging middleware.
	handler := loggingMiddleware(recoveryMiddleware(api.CORS(cfg.CORSOrigin, mux)))

	// ── 14. Start HTTP server ────────────────────────────────────────────────
	// WriteTimeout must outlast the provider timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ProviderTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received %s — shutting down…", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		webhookDispatcher.Wait()
		cancel()
	}()

	log.Printf("inkd listening on http://0.0.0.0:%s", cfg.Port)
	log.Printf("  API:   http://localhost:%s/api/humanize", cfg.Port)
	log.Printf("  Admin: http://localhost:%s/api/v1/status", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	<-ctx.Done()
	log.Printf("inkd stopped.")
	return nil
}

// loggingMiddleware logs each request. Bodies are never logged.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

// statusWriter records the response status for logging. Hijack is passed
// through so the /ws upgrade still works behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("statusWriter: %T does not support hijacking", s.ResponseWriter)
	}
	return hj.Hijack()
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				log.Printf("panic: %v", rv)
				http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
