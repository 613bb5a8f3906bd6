package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// EventCompleted is sent after a payment executes.
const EventCompleted = "payment.completed"

// Notifier delivers an event to operators.
type Notifier interface {
	Send(event string, payload interface{})
}

// Receipt is returned to the payer after a successful execution.
type Receipt struct {
	PaymentID string   `json:"paymentId"`
	UserID    string   `json:"userId,omitempty"`
	PlanName  string   `json:"planName,omitempty"`
	State     string   `json:"state"`
	Amount    Amount   `json:"amount"`
	Payment   *Payment `json:"payment"`
}

// Service runs the two-step purchase flow and records it.
type Service struct {
	client *Client
	store  *Store
	notify Notifier
}

// NewService creates a Service. store and notify may be nil.
func NewService(client *Client, store *Store, notify Notifier) *Service {
	return &Service{client: client, store: store, notify: notify}
}

// Configured reports whether PayPal credentials are present.
func (s *Service) Configured() bool { return s.client.Configured() }

// Start creates a payment for userID and returns the approval link.
func (s *Service) Start(ctx context.Context, userID string, o Order) (string, error) {
	p, err := s.client.CreatePayment(ctx, o)
	if err != nil {
		return "", err
	}
	link, err := p.ApprovalURL()
	if err != nil {
		return "", fmt.Errorf("payment.Start: %w", err)
	}
	if s.store != nil {
		if err := s.store.Created(ctx, userID, o.PlanName, p); err != nil {
			log.Printf("payment.Start: %v", err)
		}
	}
	log.Printf("payment.Start: created %s for user=%s plan=%s", p.ID, userID, o.PlanName)
	return link, nil
}

// Complete executes an approved payment and returns the receipt.
func (s *Service) Complete(ctx context.Context, paymentID, payerID string) (*Receipt, error) {
	if paymentID == "" || payerID == "" {
		return nil, errors.New("payment.Complete: paymentId and PayerID are required")
	}
	p, err := s.client.ExecutePayment(ctx, paymentID, payerID)
	if err != nil {
		return nil, err
	}
	amount, _ := p.Total()
	r := &Receipt{PaymentID: p.ID, State: p.State, Amount: amount, Payment: p}

	if s.store != nil {
		if err := s.store.Executed(ctx, paymentID, payerID, p.State); err != nil {
			log.Printf("payment.Complete: %v", err)
		}
		if stored, err := s.store.Get(ctx, paymentID); err == nil {
			r.UserID, r.PlanName = stored.UserID, stored.PlanName
		}
	}
	if s.notify != nil {
		s.notify.Send(EventCompleted, map[string]string{
			"payment_id": r.PaymentID,
			"user_id":    r.UserID,
			"plan":       r.PlanName,
			"amount":     amount.Total + " " + amount.Currency,
			"state":      r.State,
		})
	}
	return r, nil
}
