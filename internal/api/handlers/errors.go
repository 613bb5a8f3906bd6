package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/Manjussha/inkd/internal/humanize"
)

// errorBody is the flat error shape of the public routes.
type errorBody struct {
	Error            string `json:"error"`
	Details          string `json:"details,omitempty"`
	CurrentCredits   *int64 `json:"currentCredits,omitempty"`
	RequiredCredits  *int64 `json:"requiredCredits,omitempty"`
	RemainingCredits *int64 `json:"remainingCredits,omitempty"`
	Refunded         bool   `json:"refunded,omitempty"`
}

// mapHumanizeError picks the status and body for an error from humanize.Service.
func mapHumanizeError(err error) (int, errorBody) {
	var (
		insufficient *humanize.InsufficientCreditError
		ledgerErr    *humanize.LedgerError
		genErr       *humanize.GenerationError
	)
	switch {
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, errorBody{
			Error:           "Insufficient word credits",
			CurrentCredits:  &insufficient.Current,
			RequiredCredits: &insufficient.Required,
		}

	case errors.Is(err, humanize.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: inputMessage(err)}

	case errors.Is(err, humanize.ErrAccountNotFound):
		return http.StatusNotFound, errorBody{Error: "User credits not found"}

	case errors.As(err, &ledgerErr):
		return http.StatusInternalServerError, errorBody{
			Error:   "Credit ledger unavailable",
			Details: ledgerErr.Err.Error(),
		}

	case errors.As(err, &genErr):
		code := http.StatusInternalServerError
		if genErr.Timeout {
			code = http.StatusGatewayTimeout
		}
		return code, errorBody{
			Error:            "Failed to humanize text",
			Details:          genErr.Detail,
			RemainingCredits: &genErr.RemainingCredits,
			Refunded:         genErr.Refunded,
		}

	default:
		return http.StatusInternalServerError, errorBody{Error: "internal error", Details: err.Error()}
	}
}

// writeHumanizeError writes err using mapHumanizeError. Server-side failures
// are logged here in full.
func writeHumanizeError(w http.ResponseWriter, err error) {
	code, body := mapHumanizeError(err)
	if code >= http.StatusInternalServerError {
		log.Printf("handlers.Humanize: %d: %v", code, err)
	}
	writeJSON(w, code, body)
}

// inputMessage keeps the caller-facing part of an ErrInvalidInput message.
func inputMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, humanize.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(humanize.ErrInvalidInput.Error())+2:]
	}
	return msg
}
