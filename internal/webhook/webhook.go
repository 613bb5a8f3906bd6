// Package webhook fires outbound webhook events to registered URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Manjussha/inkd/internal/db"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when the webhook has a secret.
const SignatureHeader = "X-Inkd-Signature"

// Dispatcher fires webhooks stored in the database.
type Dispatcher struct {
	database *db.DB
	client   *http.Client
	backoff  func() backoff.BackOff
	tries    uint
	wg       sync.WaitGroup
}

// New creates a Dispatcher with a default HTTP client.
func New(database *db.DB) *Dispatcher {
	return &Dispatcher{
		database: database,
		client:   &http.Client{Timeout: 10 * time.Second},
		backoff:  defaultBackOff,
		tries:    4,
	}
}

// Payload is the JSON body sent to webhook URLs.
type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type target struct {
	id     int
	url    string
	secret string
}

// Fire sends an event to all matching enabled webhook URLs in the background.
// Each delivery is retried with exponential backoff starting at 500ms.
func (d *Dispatcher) Fire(event string, data interface{}) {
	rows, err := d.database.Query(`SELECT id, url, events, secret FROM webhooks WHERE enabled=1`)
	if err != nil {
		log.Printf("webhook.Fire: query: %v", err)
		return
	}
	var targets []target
	for rows.Next() {
		var t target
		var events string
		if err := rows.Scan(&t.id, &t.url, &events, &t.secret); err != nil {
			continue
		}
		if events != "" && !matchesEvent(events, event) {
			continue
		}
		targets = append(targets, t)
	}
	rows.Close()
	if len(targets) == 0 {
		return
	}

	body, err := json.Marshal(Payload{Event: event, Timestamp: time.Now(), Data: data})
	if err != nil {
		log.Printf("webhook.Fire: marshal: %v", err)
		return
	}
	for _, t := range targets {
		d.wg.Add(1)
		go func(t target) {
			defer d.wg.Done()
			d.fireOne(t, body)
		}(t)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	return b
}

func (d *Dispatcher) fireOne(t target, body []byte) {
	attempt := 0
	status, err := backoff.Retry(context.Background(), func() (int, error) {
		attempt++
		status, err := d.post(t.url, t.secret, body)
		switch {
		case err != nil:
		case status < 400:
			return status, nil
		case status >= 500, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
			err = fmt.Errorf("status %d", status)
		default:
			// Other client errors will not change on retry.
			return status, backoff.Permanent(fmt.Errorf("status %d", status))
		}
		log.Printf("webhook.fireOne: attempt %d to %s: %v", attempt, t.url, err)
		return status, err
	}, backoff.WithBackOff(d.backoff()), backoff.WithMaxTries(d.tries))
	if err != nil {
		log.Printf("webhook.fireOne: giving up on %s after %d attempts: %v", t.url, attempt, err)
	}
	_, _ = d.database.Exec(
		`UPDATE webhooks SET last_status=?, last_fired=? WHERE id=?`,
		status, time.Now(), t.id,
	)
}

func (d *Dispatcher) post(url, secret string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook.post: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook.post: do: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func matchesEvent(events, event string) bool {
	for _, e := range strings.Split(events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}

// TestWebhook fires a test payload to a single webhook by ID.
func (d *Dispatcher) TestWebhook(ctx context.Context, id int) error {
	var url, secret string
	if err := d.database.QueryRowContext(ctx,
		`SELECT url, secret FROM webhooks WHERE id=?`, id).Scan(&url, &secret); err != nil {
		return fmt.Errorf("webhook.TestWebhook: %w", err)
	}
	body, _ := json.Marshal(Payload{
		Event:     "webhook.test",
		Timestamp: time.Now(),
		Data:      map[string]string{"message": "This is a test from inkd"},
	})
	status, err := d.post(url, secret, body)
	if err != nil {
		return fmt.Errorf("webhook.TestWebhook: post: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("webhook.TestWebhook: server returned %d", status)
	}
	return nil
}
