// Package humanize runs the credit-metered rewrite of one request: validate,
// count words, check and debit credit, build prompts, call the provider.
package humanize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/limiter"
	"github.com/Manjussha/inkd/internal/prompt"
	"github.com/Manjussha/inkd/internal/provider"
	"github.com/Manjussha/inkd/internal/tone"
	"github.com/Manjussha/inkd/internal/usage"
)

// Request is one transformation request.
type Request struct {
	Text       string
	UserID     string
	TonePreset string
	Tone       string
	SampleText string
}

// Result is returned only after a successful provider call.
type Result struct {
	RequestID        string `json:"requestId"`
	Original         string `json:"original"`
	Humanized        string `json:"humanized"`
	WordsUsed        int64  `json:"wordsUsed"`
	RemainingCredits int64  `json:"remainingCredits"`
}

// Recorder stores the outcome of a charged request.
type Recorder interface {
	Record(ctx context.Context, e usage.Entry) error
}

// Watcher is told the caller's balance after every charge.
type Watcher interface {
	Check(userID string, balance int64) *usage.Alert
}

// Broadcaster publishes live events.
type Broadcaster interface {
	BroadcastEvent(typ string, data interface{})
}

// Observer receives per-request measurements. charged is the number of
// words that stayed debited.
type Observer interface {
	ObserveRequest(outcome string, charged int64)
	ObserveProvider(took time.Duration, err error)
}

// Outcome labels passed to Observer.ObserveRequest.
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid_input"
	OutcomeNotFound     = "account_not_found"
	OutcomeInsufficient = "insufficient_credit"
	OutcomeLedger       = "ledger_unavailable"
	OutcomeFailed       = "generation_failed"
	OutcomeTimeout      = "timeout"
)

// Outcome classifies the error returned by Handle.
func Outcome(err error) string {
	var gerr *GenerationError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &gerr) && gerr.Timeout:
		return OutcomeTimeout
	case errors.Is(err, ErrGenerationFailed):
		return OutcomeFailed
	case errors.Is(err, ErrInsufficientCredit):
		return OutcomeInsufficient
	case errors.Is(err, ErrAccountNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalid
	default:
		return OutcomeLedger
	}
}

// Event types published to the Broadcaster.
const (
	EventCompleted = "humanize_complete"
	EventFailed    = "humanize_failed"
)

// Options tune a Service. The zero value uses provider.DefaultSampling, no
// timeout and no refund.
type Options struct {
	// Timeout bounds the provider call. Zero means only ctx bounds it.
	Timeout time.Duration
	// RefundOnFailure credits the debited words back when the provider fails.
	RefundOnFailure bool
	Sampling        provider.Sampling

	Recorder Recorder
	Watcher  Watcher
	Events   Broadcaster
	Observer Observer
}

// Service is the transformation orchestrator. Safe for concurrent use; it
// holds no per-request state and relies on the ledger for serialization.
type Service struct {
	ledger  credit.Ledger
	catalog tone.Source
	gen     provider.Generator
	opts    Options
}

// New creates a Service.
func New(ledger credit.Ledger, catalog tone.Source, gen provider.Generator, opts Options) *Service {
	if opts.Sampling == (provider.Sampling{}) {
		opts.Sampling = provider.DefaultSampling
	}
	return &Service{ledger: ledger, catalog: catalog, gen: gen, opts: opts}
}

// CountWords returns the number of whitespace-separated tokens in text.
func CountWords(text string) int64 {
	return int64(len(strings.Fields(text)))
}

// Handle runs one request through the pipeline.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	res, err := s.handle(ctx, req)
	if s.opts.Observer != nil {
		var charged int64
		var gerr *GenerationError
		switch {
		case res != nil:
			charged = res.WordsUsed
		case errors.As(err, &gerr) && !gerr.Refunded:
			charged = CountWords(req.Text)
		}
		s.opts.Observer.ObserveRequest(Outcome(err), charged)
	}
	return res, err
}

func (s *Service) handle(ctx context.Context, req Request) (*Result, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("humanize.Handle: %w: userId is required", ErrInvalidInput)
	}
	words := CountWords(req.Text)
	if words == 0 {
		return nil, fmt.Errorf("humanize.Handle: %w: text is required", ErrInvalidInput)
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, s.ledgerErr(userID, "balance", err)
	}
	if balance < words {
		return nil, &InsufficientCreditError{Current: balance, Required: words}
	}

	remaining, err := s.ledger.Debit(ctx, userID, words)
	if err != nil {
		// Lost a race with a concurrent request for the same caller.
		var ie *credit.InsufficientError
		if errors.As(err, &ie) {
			return nil, &InsufficientCreditError{Current: ie.Balance, Required: words}
		}
		return nil, s.ledgerErr(userID, "debit", err)
	}

	requestID := uuid.NewString()
	preset := s.catalog.Resolve(req.TonePreset)
	pair := prompt.Build(prompt.Input{Text: req.Text, Tone: req.Tone, SampleText: req.SampleText}, preset)

	genCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := s.gen.Generate(genCtx, pair, s.opts.Sampling)
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveProvider(time.Since(start), err)
	}
	if err != nil {
		gerr := s.generationFailed(ctx, genCtx, userID, words, remaining, err)
		log.Printf("humanize.Handle: request %s user=%s preset=%s words=%d: %v", requestID, userID, preset.ID, words, err)
		s.after(ctx, usage.Entry{
			RequestID:  requestID,
			UserID:     userID,
			TonePreset: preset.ID,
			Words:      words,
			Status:     usage.StatusFailed,
			Error:      gerr.Detail,
		}, gerr.RemainingCredits, EventFailed)
		return nil, gerr
	}

	res := &Result{
		RequestID:        requestID,
		Original:         req.Text,
		Humanized:        text,
		WordsUsed:        words,
		RemainingCredits: remaining,
	}
	s.after(ctx, usage.Entry{
		RequestID:  requestID,
		UserID:     userID,
		TonePreset: preset.ID,
		Words:      words,
		Status:     usage.StatusOK,
	}, remaining, EventCompleted)
	return res, nil
}

func (s *Service) ledgerErr(userID, op string, err error) error {
	if errors.Is(err, credit.ErrAccountNotFound) {
		return fmt.Errorf("humanize.Handle: %w: %s", ErrAccountNotFound, userID)
	}
	log.Printf("humanize.Handle: ledger %s for %s: %v", op, userID, err)
	return &LedgerError{Op: op, Err: err}
}

func (s *Service) generationFailed(ctx, genCtx context.Context, userID string, words, remaining int64, err error) *GenerationError {
	gerr := &GenerationError{
		Detail:           err.Error(),
		Timeout:          errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded),
		RemainingCredits: remaining,
		Err:              err,
	}
	var rl *limiter.ErrRateLimit
	gerr.RateLimited = errors.As(err, &rl)

	if !s.opts.RefundOnFailure {
		return gerr
	}
	// The request context may already be done; the refund must still land.
	bal, rerr := s.ledger.Credit(context.WithoutCancel(ctx), userID, words, credit.ReasonRefund)
	if rerr != nil {
		log.Printf("humanize.Handle: refund %d words to %s: %v", words, userID, rerr)
		return gerr
	}
	gerr.Refunded = true
	gerr.RemainingCredits = bal
	return gerr
}

// after runs the bookkeeping that never changes the outcome of a request.
func (s *Service) after(ctx context.Context, e usage.Entry, balance int64, event string) {
	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.Record(context.WithoutCancel(ctx), e); err != nil {
			log.Printf("humanize.Handle: record usage: %v", err)
		}
	}
	if s.opts.Watcher != nil {
		s.opts.Watcher.Check(e.UserID, balance)
	}
	if s.opts.Events != nil {
		s.opts.Events.BroadcastEvent(event, map[string]interface{}{
			"request_id":        e.RequestID,
			"user_id":           e.UserID,
			"tone_preset":       e.TonePreset,
			"words":             e.Words,
			"remaining_credits": balance,
		})
	}
}
