package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Manjussha/inkd/internal/humanize"
)

func TestMapHumanizeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid", fmt.Errorf("humanize.Handle: %w: text is required", humanize.ErrInvalidInput), http.StatusBadRequest, "text is required"},
		{"not found", fmt.Errorf("humanize.Handle: %w: u1", humanize.ErrAccountNotFound), http.StatusNotFound, "User credits not found"},
		{"insufficient", &humanize.InsufficientCreditError{Current: 2, Required: 9}, http.StatusBadRequest, "Insufficient word credits"},
		{"ledger", &humanize.LedgerError{Op: "debit", Err: errors.New("disk I/O error")}, http.StatusInternalServerError, "Credit ledger unavailable"},
		{"generation", &humanize.GenerationError{Detail: "boom", Err: errors.New("boom")}, http.StatusInternalServerError, "Failed to humanize text"},
		{"timeout", &humanize.GenerationError{Detail: "slow", Timeout: true, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "Failed to humanize text"},
		{"other", errors.New("???"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := mapHumanizeError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestMapHumanizeError_Context(t *testing.T) {
	_, body := mapHumanizeError(&humanize.InsufficientCreditError{Current: 2, Required: 9})
	if assert.NotNil(t, body.CurrentCredits) && assert.NotNil(t, body.RequiredCredits) {
		assert.Equal(t, int64(2), *body.CurrentCredits)
		assert.Equal(t, int64(9), *body.RequiredCredits)
	}
	assert.Empty(t, body.Details)

	_, body = mapHumanizeError(&humanize.GenerationError{Detail: "boom", RemainingCredits: 4, Refunded: true, Err: errors.New("boom")})
	assert.Equal(t, "boom", body.Details)
	assert.Equal(t, int64(4), *body.RemainingCredits)
	assert.True(t, body.Refunded)
}
