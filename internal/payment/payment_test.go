package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manjussha/inkd/internal/db"
)

func TestCleanPrice(t *testing.T) {
	cases := map[string]string{
		"9.99":      "9.99",
		"$19":       "19.00",
		" $1,299.5": "1299.50",
		"0.5":       "0.50",
	}
	for in, want := range cases {
		got, err := CleanPrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "free", "0", "-5", "$", "NaN", "Inf", "+Inf", "-Inf", "1e400"} {
		_, err := CleanPrice(bad)
		assert.ErrorIs(t, err, ErrInvalidPrice, bad)
	}
}

// fakePayPal is a minimal PayPal v1 payments API.
type fakePayPal struct {
	mu        sync.Mutex
	created   map[string]interface{}
	executed  map[string]interface{}
	failName  string
	tokenHits int
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		f.mu.Lock()
		f.tokenHits++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("POST /v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if f.failName != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"name":"` + f.failName + `","message":"Invalid request","details":[{"field":"payee"}]}`))
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.created = body
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"PAY-1","state":"created","transactions":[{"amount":{"currency":"USD","total":"19.00"}}],
			"links":[{"href":"https://x/self","rel":"self"},{"href":"https://paypal.test/approve?token=EC-1","rel":"approval_url","method":"REDIRECT"}]}`))
	})
	mux.HandleFunc("GET /v1/payments/payment/PAY-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"PAY-1","state":"created","transactions":[{"amount":{"currency":"USD","total":"19.00"}}]}`))
	})
	mux.HandleFunc("POST /v1/payments/payment/PAY-1/execute", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.executed = body
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"PAY-1","state":"approved","transactions":[{"amount":{"currency":"USD","total":"19.00"}}]}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakePayPal) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:       srv.URL,
		ClientID:      "cid",
		ClientSecret:  "secret",
		MerchantEmail: "shop@example.com",
		ReturnURL:     "http://localhost:3000/success",
		CancelURL:     "http://localhost:3000/cancel",
	})
}

func TestClient_CreatePayment(t *testing.T) {
	f := &fakePayPal{}
	c := newTestClient(t, f)

	p, err := c.CreatePayment(context.Background(), Order{PlanName: "Pro", Price: "$19", Billing: "monthly"})
	require.NoError(t, err)
	link, err := p.ApprovalURL()
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.test/approve?token=EC-1", link)

	txns := f.created["transactions"].([]interface{})
	txn := txns[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"currency": "USD", "total": "19.00"}, txn["amount"])
	assert.Equal(t, "inkd Pro Plan - monthly", txn["description"])
	assert.Equal(t, map[string]interface{}{"email": "shop@example.com"}, txn["payee"])
	assert.Equal(t, "sale", f.created["intent"])
}

func TestClient_ValidationError(t *testing.T) {
	f := &fakePayPal{failName: "VALIDATION_ERROR"}
	c := newTestClient(t, f)

	_, err := c.CreatePayment(context.Background(), Order{PlanName: "Pro", Price: "19"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.JSONEq(t, `[{"field":"payee"}]`, string(apiErr.Details))
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Configured())
	_, err := c.CreatePayment(context.Background(), Order{Price: "1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.ExecutePayment(context.Background(), "PAY-1", "P")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_InvalidPriceNeverCallsPayPal(t *testing.T) {
	f := &fakePayPal{}
	c := newTestClient(t, f)
	_, err := c.CreatePayment(context.Background(), Order{PlanName: "Pro", Price: "abc"})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Zero(t, f.tokenHits)
}

type events struct {
	mu   sync.Mutex
	sent []string
}

func (e *events) Send(event string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, event)
}

func TestService_Flow(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "inkd_payment_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate())

	f := &fakePayPal{}
	n := &events{}
	store := NewStore(database)
	svc := NewService(newTestClient(t, f), store, n)
	ctx := context.Background()

	link, err := svc.Start(ctx, "u1", Order{PlanName: "Pro", Price: "19", Billing: "monthly"})
	require.NoError(t, err)
	assert.Contains(t, link, "approve")

	stored, err := store.Get(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "19.00", stored.Amount)
	assert.Equal(t, "created", stored.State)

	_, err = svc.Complete(ctx, "", "")
	assert.Error(t, err)

	r, err := svc.Complete(ctx, "PAY-1", "PAYER-9")
	require.NoError(t, err)
	assert.Equal(t, "approved", r.State)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, "Pro", r.PlanName)
	assert.Equal(t, "19.00", r.Amount.Total)

	assert.Equal(t, "PAYER-9", f.executed["payer_id"])
	txn := f.executed["transactions"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"currency": "USD", "total": "19.00"}, txn["amount"])

	stored, err = store.Get(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, "approved", stored.State)
	assert.Equal(t, "PAYER-9", stored.PayerID)
	assert.True(t, stored.Executed.Valid)

	assert.Equal(t, []string{EventCompleted}, n.sent)
}
