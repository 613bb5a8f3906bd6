package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Manjussha/inkd/internal/ws"
)

type chat struct{ msgs []string }

func (c *chat) Send(msg string) error {
	c.msgs = append(c.msgs, msg)
	return errors.New("delivery errors are only logged")
}

type hooks struct{ events []string }

func (h *hooks) Fire(event string, _ interface{}) { h.events = append(h.events, event) }

type alert struct{}

func (alert) AlertMessage() string { return "running low" }

func TestDispatcher_Send(t *testing.T) {
	c, h := &chat{}, &hooks{}
	d := New(nil, h)
	d.Send("payment.completed", map[string]string{"user_id": "u1", "amount": "19.00 USD", "plan": ""})
	assert.Empty(t, c.msgs)

	d.SetTelegram(c)
	d.Send("payment.completed", map[string]string{"user_id": "u1", "amount": "19.00 USD", "plan": ""})
	d.Send("credit.low", alert{})
	d.SendTelegram("hi")

	assert.Equal(t, []string{
		"[payment.completed]\namount: 19.00 USD\nuser_id: u1",
		"running low",
		"hi",
	}, c.msgs)
	assert.Equal(t, []string{"payment.completed", "payment.completed", "credit.low"}, h.events)
}

type richChat struct {
	chat
	rich []string
}

func (c *richChat) SendEvent(event string, _ interface{}) (bool, error) {
	if event != "credit.low" {
		return false, nil
	}
	c.rich = append(c.rich, event)
	return true, nil
}

func TestDispatcher_EventSender(t *testing.T) {
	c := &richChat{}
	d := New(c, nil)
	d.Send("credit.low", alert{})
	d.Send("payment.completed", 1)
	assert.Equal(t, []string{"credit.low"}, c.rich)
	assert.Equal(t, []string{"[payment.completed] 1"}, c.msgs)
}

func TestFormat_Default(t *testing.T) {
	assert.Equal(t, "[x] 42", Format("x", 42))
}

type dashboard struct{ types []string }

func (d *dashboard) BroadcastEvent(typ string, _ interface{}) { d.types = append(d.types, typ) }

func TestDispatcher_Live(t *testing.T) {
	live := &dashboard{}
	d := New(nil, nil)
	d.SetLive(live)
	d.Send("credit.low", alert{})
	d.Send("payment.completed", nil)
	assert.Equal(t, []string{ws.TypeCreditLow, ws.TypePayment}, live.types)
}
