package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/Manjussha/inkd/internal/credit"
	"github.com/Manjussha/inkd/internal/db"
	"github.com/Manjussha/inkd/internal/ws"
)

// accountReader is implemented by ledgers that keep account rows and history.
type accountReader interface {
	Account(ctx context.Context, userID string) (*db.CreditAccount, error)
	History(ctx context.Context, userID string, limit int) ([]db.CreditTransaction, error)
}

// GetCredits handles GET /api/credits/{userId}.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(pathID(r, "userId"))
	bal, err := h.ledger.Balance(r.Context(), userID)
	switch {
	case errors.Is(err, credit.ErrAccountNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "User credits not found"})
		return
	case err != nil:
		log.Printf("handlers.GetCredits: %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Credit ledger unavailable", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": userID, "wordCredits": bal})
}

// AdminGetCredits handles GET /api/v1/credits/{userId}.
func (h *Handler) AdminGetCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := strings.TrimSpace(pathID(r, "userId"))
	bal, err := h.ledger.Balance(ctx, userID)
	if errors.Is(err, credit.ErrAccountNotFound) {
		fail(w, http.StatusNotFound, "account not found")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, "balance: "+err.Error())
		return
	}
	out := map[string]interface{}{
		"user_id": userID,
		"balance": bal,
	}
	if h.governor != nil {
		out["zone"] = h.governor.ZoneFor(bal).String()
	}
	if ar, hasHistory := h.ledger.(accountReader); hasHistory {
		if hist, err := ar.History(ctx, userID, 50); err == nil {
			out["history"] = hist
		}
	}
	ok(w, out)
}

// GrantCredits handles PUT /api/v1/credits/{userId}.
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(pathID(r, "userId"))
	if userID == "" {
		fail(w, http.StatusBadRequest, "userId is required")
		return
	}
	var req struct {
		Amount int64  `json:"amount" validate:"gt=0"`
		Reason string `json:"reason" validate:"max=64"`
	}
	if msg, valid := bind(r, &req); !valid {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	if req.Reason == "" {
		req.Reason = credit.ReasonGrant
	}
	bal, err := h.ledger.Credit(r.Context(), userID, req.Amount, req.Reason)
	if errors.Is(err, credit.ErrInvalidAmount) {
		fail(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if errors.Is(err, credit.ErrBalanceOverflow) {
		fail(w, http.StatusBadRequest, "amount would overflow the balance")
		return
	}
	if err != nil {
		fail(w, http.StatusInternalServerError, "credit: "+err.Error())
		return
	}
	h.granted(userID, req.Amount, bal)
	ok(w, map[string]interface{}{"user_id": userID, "balance": bal})
}

// granted resets the low-credit alert state and announces the grant.
func (h *Handler) granted(userID string, amount, balance int64) {
	if h.governor != nil {
		h.governor.Reset(userID)
	}
	if h.hub != nil {
		h.hub.BroadcastEvent(ws.TypeCreditGranted, map[string]interface{}{
			"user_id": userID,
			"amount":  amount,
			"balance": balance,
		})
	}
	if h.db != nil {
		h.db.WriteLog(userID, "info", fmt.Sprintf("granted %d words, balance %d", amount, balance))
	}
}
