// Package notify routes operator events to Telegram and webhooks.
package notify

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Sender can send a plain text message.
type Sender interface {
	Send(msg string) error
}

// EventSender is a Sender that renders some events itself.
// It reports handled=false for events it leaves to the plain text path.
type EventSender interface {
	SendEvent(event string, payload interface{}) (handled bool, err error)
}

// WebhookFirer can fire a webhook event.
type WebhookFirer interface {
	Fire(event string, payload interface{})
}

// Broadcaster mirrors events to live dashboards.
type Broadcaster interface {
	BroadcastEvent(typ string, data interface{})
}

// Dispatcher routes notification events to Telegram, webhooks and dashboards.
type Dispatcher struct {
	telegram Sender
	webhook  WebhookFirer
	live     Broadcaster
}

// New creates a Dispatcher. Both telegram and webhook may be nil (disabled).
func New(telegram Sender, webhook WebhookFirer) *Dispatcher {
	return &Dispatcher{telegram: telegram, webhook: webhook}
}

// SetTelegram attaches the Telegram sender once the bot has connected.
func (d *Dispatcher) SetTelegram(s Sender) { d.telegram = s }

// SetLive attaches a dashboard broadcaster. Event names are sent with
// dots replaced by underscores ("credit.low" becomes "credit_low").
func (d *Dispatcher) SetLive(b Broadcaster) { d.live = b }

// Send dispatches a notification event to all configured adapters.
func (d *Dispatcher) Send(event string, payload interface{}) {
	if d.live != nil {
		d.live.BroadcastEvent(strings.ReplaceAll(event, ".", "_"), payload)
	}
	if d.telegram != nil {
		d.sendTelegram(event, payload)
	}
	if d.webhook != nil {
		d.webhook.Fire(event, payload)
	}
}

func (d *Dispatcher) sendTelegram(event string, payload interface{}) {
	if es, ok := d.telegram.(EventSender); ok {
		handled, err := es.SendEvent(event, payload)
		if err != nil {
			log.Printf("notify: telegram event %s: %v", event, err)
		}
		if handled {
			return
		}
	}
	if err := d.telegram.Send(Format(event, payload)); err != nil {
		log.Printf("notify: telegram send: %v", err)
	}
}

// SendTelegram sends a message only via Telegram.
func (d *Dispatcher) SendTelegram(msg string) {
	if d.telegram == nil {
		return
	}
	if err := d.telegram.Send(msg); err != nil {
		log.Printf("notify: telegram: %v", err)
	}
}

type messager interface {
	AlertMessage() string
}

// Format renders an event for a chat message.
func Format(event string, payload interface{}) string {
	switch p := payload.(type) {
	case messager:
		return p.AlertMessage()
	case map[string]string:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("[" + event + "]")
		for _, k := range keys {
			if p[k] != "" {
				fmt.Fprintf(&b, "\n%s: %s", k, p[k])
			}
		}
		return b.String()
	default:
		return fmt.Sprintf("[%s] %v", event, payload)
	}
}
