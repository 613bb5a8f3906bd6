package humanize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/db"
	"github.com/Manjussha/inkd/internal/limiter"
	"github.com/Manjussha/inkd/internal/prompt"
	"github.com/Manjussha/inkd/internal/provider"
	"github.com/Manjussha/inkd/internal/tone"
	"github.com/Manjussha/inkd/internal/usage"
)

type generatorFunc func(ctx context.Context, p prompt.Pair, s provider.Sampling) (string, error)

func (f generatorFunc) Generate(ctx context.Context, p prompt.Pair, s provider.Sampling) (string, error) {
	return f(ctx, p, s)
}

// capturing records every prompt pair and answers with a fixed text.
type capturing struct {
	mu       sync.Mutex
	pairs    []prompt.Pair
	sampling []provider.Sampling
	calls    int
}

func (c *capturing) Generate(_ context.Context, p prompt.Pair, s provider.Sampling) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.pairs = append(c.pairs, p)
	c.sampling = append(c.sampling, s)
	return "rewritten, kinda", nil
}

func failing(err error) provider.Generator {
	return generatorFunc(func(context.Context, prompt.Pair, provider.Sampling) (string, error) {
		return "", err
	})
}

func seeded(t *testing.T, userID string, balance int64) *credit.MemoryLedger {
	t.Helper()
	l := credit.NewMemoryLedger()
	if balance > 0 {
		_, err := l.Credit(context.Background(), userID, balance, credit.ReasonGrant)
		require.NoError(t, err)
	}
	return l
}

func seededSQLite(t *testing.T, userID string, balance int64) *credit.SQLiteLedger {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "inkd_humanize_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())
	l := credit.NewSQLiteLedger(database)
	_, err = l.Credit(context.Background(), userID, balance, credit.ReasonGrant)
	require.NoError(t, err)
	return l
}

func balanceOf(t *testing.T, l credit.Ledger, userID string) int64 {
	t.Helper()
	b, err := l.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, int64(3), CountWords("  a  b   c "))
	assert.Equal(t, int64(1), CountWords("word"))
	assert.Equal(t, int64(4), CountWords("tabs\tand\nnew lines"))
	assert.Equal(t, int64(0), CountWords("   \n\t "))
}

func TestHandle_InvalidInput(t *testing.T) {
	gen := &capturing{}
	svc := New(seeded(t, "u1", 10), tone.Default(), gen, Options{})
	ctx := context.Background()

	cases := []Request{
		{Text: "", UserID: "u1"},
		{Text: "   \n ", UserID: "u1"},
		{Text: "hello there", UserID: ""},
		{Text: "hello there", UserID: "  "},
	}
	for _, req := range cases {
		_, err := svc.Handle(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Zero(t, gen.calls)
}

func TestHandle_AccountNotFound(t *testing.T) {
	svc := New(credit.NewMemoryLedger(), tone.Default(), &capturing{}, Options{})
	_, err := svc.Handle(context.Background(), Request{Text: "hi", UserID: "ghost"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestHandle_InsufficientCreditNoDebit(t *testing.T) {
	l := seeded(t, "u1", 5)
	gen := &capturing{}
	svc := New(l, tone.Default(), gen, Options{})

	_, err := svc.Handle(context.Background(), Request{Text: "one two three four five six", UserID: "u1"})
	require.ErrorIs(t, err, ErrInsufficientCredit)
	var ie *InsufficientCreditError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, int64(5), ie.Current)
	assert.Equal(t, int64(6), ie.Required)

	assert.Equal(t, int64(5), balanceOf(t, l, "u1"))
	assert.Zero(t, gen.calls, "provider must not be called")
}

func TestHandle_DebitsExactWordCount(t *testing.T) {
	l := seeded(t, "u1", 10)
	svc := New(l, tone.Default(), &capturing{}, Options{})

	res, err := svc.Handle(context.Background(), Request{Text: "one two three four five", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.WordsUsed)
	assert.Equal(t, int64(5), res.RemainingCredits)
	assert.Equal(t, int64(5), balanceOf(t, l, "u1"))
	assert.NotEmpty(t, res.RequestID)
}

func TestHandle_EndToEndFormal(t *testing.T) {
	l := seeded(t, "u1", 100)
	gen := &capturing{}
	svc := New(l, tone.Default(), gen, Options{})

	res, err := svc.Handle(context.Background(), Request{
		Text:       "Hello world this is great",
		UserID:     "u1",
		TonePreset: "formal",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world this is great", res.Original)
	assert.NotEmpty(t, res.Humanized)
	assert.Equal(t, int64(5), res.WordsUsed)
	assert.Equal(t, int64(95), res.RemainingCredits)
	assert.Equal(t, int64(95), balanceOf(t, l, "u1"))

	require.Len(t, gen.pairs, 1)
	formal := tone.Default().Resolve(tone.Formal)
	assert.Equal(t, formal.System, gen.pairs[0].System)
	assert.Contains(t, gen.pairs[0].User, "Hello world this is great")
	assert.Equal(t, provider.DefaultSampling, gen.sampling[0])
}

func TestHandle_UnknownPresetUsesFallback(t *testing.T) {
	gen := &capturing{}
	svc := New(seeded(t, "u1", 100), tone.Default(), gen, Options{})
	ctx := context.Background()

	for _, preset := range []string{tone.CasualSlangy, "xyz", ""} {
		_, err := svc.Handle(ctx, Request{Text: "same text here", UserID: "u1", TonePreset: preset})
		require.NoError(t, err)
	}
	require.Len(t, gen.pairs, 3)
	assert.Equal(t, gen.pairs[0], gen.pairs[1])
	assert.Equal(t, gen.pairs[0], gen.pairs[2])
}

func TestHandle_ToneAndSampleReachPrompt(t *testing.T) {
	gen := &capturing{}
	svc := New(seeded(t, "u1", 100), tone.Default(), gen, Options{})

	_, err := svc.Handle(context.Background(), Request{
		Text: "some text", UserID: "u1", Tone: "witty", SampleText: "lol ok",
	})
	require.NoError(t, err)
	require.Len(t, gen.pairs, 1)
	assert.True(t, strings.HasSuffix(gen.pairs[0].System, "Please write in a witty tone, similar to this example style:\n\"lol ok\""))
}

// barrierLedger holds every Balance call until n callers have read, which
// forces the interleaving where a read-then-write implementation overdraws.
type barrierLedger struct {
	credit.Ledger
	reads sync.WaitGroup
}

func (b *barrierLedger) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := b.Ledger.Balance(ctx, userID)
	b.reads.Done()
	b.reads.Wait()
	return bal, err
}

func TestHandle_ConcurrentRequestsCannotOverdraw(t *testing.T) {
	for name, inner := range map[string]credit.Ledger{
		"memory": seeded(t, "u1", 10),
		"sqlite": seededSQLite(t, "u1", 10),
	} {
		t.Run(name, func(t *testing.T) {
			bl := &barrierLedger{Ledger: inner}
			bl.reads.Add(2)
			gen := &capturing{}
			svc := New(bl, tone.Default(), gen, Options{})

			// Each costs 6: individually affordable, together over the balance of 10.
			text := "one two three four five six"
			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.Handle(context.Background(), Request{Text: text, UserID: "u1"})
				}(i)
			}
			wg.Wait()

			var ok, insufficient int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrInsufficientCredit):
					insufficient++
					var ie *InsufficientCreditError
					require.True(t, errors.As(err, &ie))
					assert.Equal(t, int64(4), ie.Current)
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, 1, insufficient)
			assert.Equal(t, 1, gen.calls)
			assert.Equal(t, int64(4), balanceOf(t, inner, "u1"))
		})
	}
}

func TestHandle_ProviderFailureKeepsDebit(t *testing.T) {
	l := seeded(t, "u1", 10)
	svc := New(l, tone.Default(), failing(errors.New("upstream exploded")), Options{})

	_, err := svc.Handle(context.Background(), Request{Text: "one two three", UserID: "u1"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	var gerr *GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.Contains(t, gerr.Detail, "upstream exploded")
	assert.False(t, gerr.Timeout)
	assert.False(t, gerr.Refunded)
	assert.Equal(t, int64(7), gerr.RemainingCredits)
	assert.Equal(t, int64(7), balanceOf(t, l, "u1"))
}

func TestHandle_ProviderRateLimited(t *testing.T) {
	svc := New(seeded(t, "u1", 10), tone.Default(),
		failing(&limiter.ErrRateLimit{Line: "Rate limit reached"}), Options{})

	_, err := svc.Handle(context.Background(), Request{Text: "hi", UserID: "u1"})
	var gerr *GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.True(t, gerr.RateLimited)
}

func TestHandle_ProviderTimeout(t *testing.T) {
	l := seeded(t, "u1", 10)
	slow := generatorFunc(func(ctx context.Context, _ prompt.Pair, _ provider.Sampling) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
			return "too late", nil
		}
	})
	svc := New(l, tone.Default(), slow, Options{Timeout: 20 * time.Millisecond})

	_, err := svc.Handle(context.Background(), Request{Text: "one two", UserID: "u1"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	var gerr *GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.True(t, gerr.Timeout)
	assert.Equal(t, int64(8), balanceOf(t, l, "u1"))
}

func TestHandle_RefundOnFailure(t *testing.T) {
	l := seeded(t, "u1", 10)
	svc := New(l, tone.Default(), failing(errors.New("nope")), Options{RefundOnFailure: true})

	_, err := svc.Handle(context.Background(), Request{Text: "one two three", UserID: "u1"})
	var gerr *GenerationError
	require.True(t, errors.As(err, &gerr))
	assert.True(t, gerr.Refunded)
	assert.Equal(t, int64(10), gerr.RemainingCredits)
	assert.Equal(t, int64(10), balanceOf(t, l, "u1"))
}

type brokenLedger struct{ credit.Ledger }

func (brokenLedger) Balance(context.Context, string) (int64, error) {
	return 0, errors.New("disk on fire")
}

func TestHandle_LedgerUnavailable(t *testing.T) {
	gen := &capturing{}
	svc := New(brokenLedger{}, tone.Default(), gen, Options{})

	_, err := svc.Handle(context.Background(), Request{Text: "hi", UserID: "u1"})
	require.ErrorIs(t, err, ErrLedgerUnavailable)
	var lerr *LedgerError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, "balance", lerr.Op)
	assert.Zero(t, gen.calls)
}

type hooks struct {
	mu      sync.Mutex
	entries []usage.Entry
	checks  []int64
	events  []string
}

func (h *hooks) Record(_ context.Context, e usage.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return errors.New("recorder failures are logged, not returned")
}

func (h *hooks) Check(_ string, balance int64) *usage.Alert {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, balance)
	return nil
}

func (h *hooks) BroadcastEvent(typ string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, typ)
}

func TestHandle_SideEffectsDoNotChangeOutcome(t *testing.T) {
	h := &hooks{}
	svc := New(seeded(t, "u1", 10), tone.Default(), &capturing{}, Options{Recorder: h, Watcher: h, Events: h})

	res, err := svc.Handle(context.Background(), Request{Text: "a b", UserID: "u1", TonePreset: "formal"})
	require.NoError(t, err)
	assert.Equal(t, int64(8), res.RemainingCredits)

	require.Len(t, h.entries, 1)
	assert.Equal(t, usage.StatusOK, h.entries[0].Status)
	assert.Equal(t, tone.Formal, h.entries[0].TonePreset)
	assert.Equal(t, res.RequestID, h.entries[0].RequestID)
	assert.Equal(t, []int64{8}, h.checks)
	assert.Equal(t, []string{EventCompleted}, h.events)

	svc = New(seeded(t, "u2", 10), tone.Default(), failing(errors.New("x")), Options{Recorder: h, Events: h})
	_, err = svc.Handle(context.Background(), Request{Text: "a b", UserID: "u2"})
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, usage.StatusFailed, h.entries[1].Status)
	assert.Equal(t, EventFailed, h.events[1])
}

type observed struct {
	mu        sync.Mutex
	outcomes  []string
	charged   []int64
	providers int
}

func (o *observed) ObserveRequest(outcome string, charged int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.charged = append(o.charged, charged)
}

func (o *observed) ObserveProvider(time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.providers++
}

func TestHandle_Observer(t *testing.T) {
	o := &observed{}
	l := seeded(t, "u1", 5)
	svc := New(l, tone.Default(), &capturing{}, Options{Observer: o})
	ctx := context.Background()

	_, err := svc.Handle(ctx, Request{Text: "a b", UserID: "u1"})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, Request{Text: "a b c d", UserID: "u1"})
	require.ErrorIs(t, err, ErrInsufficientCredit)
	_, err = svc.Handle(ctx, Request{Text: "", UserID: "u1"})
	require.ErrorIs(t, err, ErrInvalidInput)

	svc = New(l, tone.Default(), failing(errors.New("down")), Options{Observer: o})
	_, err = svc.Handle(ctx, Request{Text: "a", UserID: "u1"})
	require.ErrorIs(t, err, ErrGenerationFailed)

	svc = New(l, tone.Default(), failing(errors.New("down")), Options{Observer: o, RefundOnFailure: true})
	_, err = svc.Handle(ctx, Request{Text: "a", UserID: "u1"})
	require.ErrorIs(t, err, ErrGenerationFailed)

	assert.Equal(t, []string{OutcomeOK, OutcomeInsufficient, OutcomeInvalid, OutcomeFailed, OutcomeFailed}, o.outcomes)
	assert.Equal(t, []int64{2, 0, 0, 1, 0}, o.charged)
	assert.Equal(t, 3, o.providers)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeOK, Outcome(nil))
	assert.Equal(t, OutcomeTimeout, Outcome(&GenerationError{Timeout: true}))
	assert.Equal(t, OutcomeFailed, Outcome(&GenerationError{}))
	assert.Equal(t, OutcomeInsufficient, Outcome(&InsufficientCreditError{}))
	assert.Equal(t, OutcomeLedger, Outcome(&LedgerError{Op: "debit", Err: errors.New("x")}))
	assert.Equal(t, OutcomeNotFound, Outcome(fmt.Errorf("x: %w", ErrAccountNotFound)))
}
