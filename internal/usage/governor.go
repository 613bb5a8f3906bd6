package usage

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Zone is a caller's balance level.
type Zone int

const (
	ZoneOK    Zone = iota // balance at or above the threshold
	ZoneLow               // below the threshold
	ZoneEmpty             // nothing left
)

// String returns a human-readable label for the zone.
func (z Zone) String() string {
	switch z {
	case ZoneLow:
		return "LOW"
	case ZoneEmpty:
		return "EMPTY"
	default:
		return "OK"
	}
}

// Notifier delivers an alert event.
type Notifier interface {
	Send(event string, payload interface{})
}

// EventCreditLow is sent when a caller's balance escalates to a worse zone.
const EventCreditLow = "credit.low"

// Alert is the payload of EventCreditLow.
type Alert struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Zone    string `json:"zone"`
	Message string `json:"message"`
}

// AlertMessage is the chat text for the alert.
func (a Alert) AlertMessage() string { return a.Message }

// Governor tracks balance zones per caller and alerts on escalation.
type Governor struct {
	threshold atomic.Int64
	notify    Notifier

	mu sync.Mutex
	// Last known non-OK zone per caller, to avoid duplicate alerts.
	lastZone map[string]Zone
}

// NewGovernor creates a Governor. notify may be nil.
func NewGovernor(threshold int64, notify Notifier) *Governor {
	g := &Governor{
		notify:   notify,
		lastZone: make(map[string]Zone),
	}
	g.threshold.Store(threshold)
	return g
}

// SetThreshold changes the low-credit threshold for subsequent checks.
func (g *Governor) SetThreshold(n int64) { g.threshold.Store(n) }

// Threshold returns the current low-credit threshold.
func (g *Governor) Threshold() int64 { return g.threshold.Load() }

// ZoneFor classifies a balance.
func (g *Governor) ZoneFor(balance int64) Zone {
	switch {
	case balance <= 0:
		return ZoneEmpty
	case balance < g.threshold.Load():
		return ZoneLow
	default:
		return ZoneOK
	}
}

// Check records the caller's new balance and returns the alert that was sent, if any.
func (g *Governor) Check(userID string, balance int64) *Alert {
	zone := g.ZoneFor(balance)

	g.mu.Lock()
	prev, known := g.lastZone[userID]
	if zone == ZoneOK {
		// Healthy callers are not tracked; an absent entry means OK.
		delete(g.lastZone, userID)
	} else {
		g.lastZone[userID] = zone
	}
	g.mu.Unlock()

	if zone == ZoneOK || (known && zone <= prev) {
		return nil
	}

	a := &Alert{UserID: userID, Balance: balance, Zone: zone.String()}
	switch zone {
	case ZoneLow:
		a.Message = fmt.Sprintf("⚠️ %s is running low on word credits (%d left).", userID, balance)
	case ZoneEmpty:
		a.Message = fmt.Sprintf("🔴 %s has run out of word credits.", userID)
	}
	if g.notify != nil {
		g.notify.Send(EventCreditLow, a)
	}
	return a
}

// Reset forgets the zone of a caller, e.g. after a top-up.
func (g *Governor) Reset(userID string) {
	g.mu.Lock()
	delete(g.lastZone, userID)
	g.mu.Unlock()
}
