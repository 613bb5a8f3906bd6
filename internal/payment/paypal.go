// Package payment buys word credit through PayPal's v1 payments API:
// create a payment and redirect the payer, then execute it on return.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Base URLs per PayPal mode.
const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

var (
	ErrNotConfigured = errors.New("payment: PayPal credentials not configured")
	ErrInvalidPrice  = errors.New("payment: price must be a positive number")
	ErrNoApprovalURL = errors.New("payment: no approval_url in PayPal response")
)

// Config is the PayPal account and redirect setup.
type Config struct {
	Mode          string // sandbox or live
	BaseURL       string // overrides Mode when set
	ClientID      string
	ClientSecret  string
	MerchantEmail string
	ReturnURL     string
	CancelURL     string
	Currency      string
	Brand         string
}

// APIError is a non-success PayPal response.
type APIError struct {
	Status  int
	Name    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal: status %d %s: %s", e.Status, e.Name, e.Message)
}

// IsValidation reports whether PayPal rejected the request as invalid,
// which in practice means bad credentials or merchant setup.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Name == "VALIDATION_ERROR"
}

// Order is what the payer is buying.
type Order struct {
	PlanName string
	Price    string
	Billing  string
}

// Amount is a PayPal money amount.
type Amount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

// Link is a HATEOAS link in a PayPal response.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// Transaction is one transaction of a payment.
type Transaction struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Payment is the subset of a PayPal payment resource inkd reads.
type Payment struct {
	ID           string        `json:"id"`
	Intent       string        `json:"intent"`
	State        string        `json:"state"`
	Transactions []Transaction `json:"transactions"`
	Links        []Link        `json:"links"`
	Payer        struct {
		PaymentMethod string `json:"payment_method"`
		PayerInfo     struct {
			Email   string `json:"email"`
			PayerID string `json:"payer_id"`
		} `json:"payer_info"`
	} `json:"payer"`
}

// ApprovalURL returns the link the payer must be redirected to.
func (p *Payment) ApprovalURL() (string, error) {
	for _, l := range p.Links {
		if l.Rel == "approval_url" {
			return l.Href, nil
		}
	}
	return "", ErrNoApprovalURL
}

// Total returns the amount of the first transaction.
func (p *Payment) Total() (Amount, bool) {
	if len(p.Transactions) == 0 {
		return Amount{}, false
	}
	return p.Transactions[0].Amount, true
}

// Client talks to the PayPal REST API. Access tokens are fetched and
// refreshed by the oauth2 client credentials flow.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. It does not contact PayPal.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = SandboxURL
		if cfg.Mode == "live" {
			base = LiveURL
		}
	}
	base = strings.TrimRight(base, "/")
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Brand == "" {
		cfg.Brand = "inkd"
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    cc.Client(context.Background()),
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// CleanPrice strips "$" and "," and formats a positive price to two decimals.
func CleanPrice(raw string) (string, error) {
	s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(raw))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return strconv.FormatFloat(v, 'f', 2, 64), nil
}

// CreatePayment creates a sale and returns it with its approval link.
func (c *Client) CreatePayment(ctx context.Context, o Order) (*Payment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	price, err := CleanPrice(o.Price)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s %s Plan", c.cfg.Brand, o.PlanName)
	txn := map[string]interface{}{
		"item_list": map[string]interface{}{
			"items": []map[string]interface{}{{
				"name":     name,
				"sku":      strings.ToLower(o.PlanName),
				"price":    price,
				"currency": c.cfg.Currency,
				"quantity": 1,
			}},
		},
		"amount":      Amount{Currency: c.cfg.Currency, Total: price},
		"description": fmt.Sprintf("%s - %s", name, o.Billing),
	}
	if c.cfg.MerchantEmail != "" {
		txn["payee"] = map[string]string{"email": c.cfg.MerchantEmail}
	}
	body := map[string]interface{}{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"redirect_urls": map[string]string{
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
		"transactions": []interface{}{txn},
	}

	var p Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/payment", body, &p); err != nil {
		return nil, fmt.Errorf("payment.CreatePayment: %w", err)
	}
	return &p, nil
}

// GetPayment looks up a payment by id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/payment/"+paymentID, nil, &p); err != nil {
		return nil, fmt.Errorf("payment.GetPayment: %w", err)
	}
	return &p, nil
}

// ExecutePayment finalizes an approved payment for the amount it was created with.
func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (*Payment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	orig, err := c.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	amount, ok := orig.Total()
	if !ok {
		return nil, fmt.Errorf("payment.ExecutePayment: payment %s has no transactions", paymentID)
	}

	body := map[string]interface{}{
		"payer_id":     payerID,
		"transactions": []Transaction{{Amount: amount}},
	}
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/payment/"+paymentID+"/execute", body, &p); err != nil {
		return nil, fmt.Errorf("payment.ExecutePayment: %w", err)
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var e struct {
			Name    string          `json:"name"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Name != "" {
			apiErr.Name, apiErr.Message, apiErr.Details = e.Name, e.Message, e.Details
		}
		return apiErr
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}
