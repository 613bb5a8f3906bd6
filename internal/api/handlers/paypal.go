package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Manjussha/inkd/internal/payment"
)

// PayPalPay handles POST /api/paypal/pay.
func (h *Handler) PayPalPay(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil || !h.payments.Configured() {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "PayPal credentials not configured. Set PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET.",
		})
		return
	}
	var req struct {
		PlanName string      `json:"planName" validate:"required,max=100"`
		Price    interface{} `json:"price"`
		Billing  string      `json:"billing" validate:"max=32"`
		UserID   string      `json:"userId" validate:"max=128"`
	}
	if msg, valid := bind(r, &req); !valid {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
		return
	}
	price, err := payment.CleanPrice(priceString(req.Price))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid price provided. Price must be a positive number."})
		return
	}

	link, err := h.payments.Start(r.Context(), req.UserID, payment.Order{
		PlanName: req.PlanName,
		Price:    price,
		Billing:  req.Billing,
	})
	h.metrics.Payment("create", err)
	if err != nil {
		log.Printf("handlers.PayPalPay: %v", err)
		var apiErr *payment.APIError
		switch {
		case payment.IsValidation(err) && errors.As(err, &apiErr):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "PayPal configuration error. Check the PayPal credentials.",
				"details": paypalDetails(apiErr),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "Failed to create PayPal payment",
				Details: err.Error(),
			})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forwardLink": link})
}

// PayPalSuccess handles GET /api/paypal/success?paymentId=&PayerID=.
func (h *Handler) PayPalSuccess(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil || !h.payments.Configured() {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "PayPal credentials not configured"})
		return
	}
	q := r.URL.Query()
	paymentID, payerID := q.Get("paymentId"), q.Get("PayerID")
	if paymentID == "" || payerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "paymentId and PayerID are required",
		})
		return
	}

	receipt, err := h.payments.Complete(r.Context(), paymentID, payerID)
	h.metrics.Payment("execute", err)
	if err != nil {
		log.Printf("handlers.PayPalSuccess: %s: %v", paymentID, err)
		body := map[string]interface{}{
			"success": false,
			"error":   "Payment execution failed",
			"details": err.Error(),
		}
		var apiErr *payment.APIError
		if errors.As(err, &apiErr) {
			body["details"] = paypalDetails(apiErr)
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Payment completed successfully",
		"payment": receipt,
	})
}

// PayPalCancel handles GET /api/paypal/cancel.
func (h *Handler) PayPalCancel(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Payment cancelled"))
}

// priceString accepts the price as a JSON string or number.
func priceString(v interface{}) string {
	switch p := v.(type) {
	case string:
		return p
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	default:
		return ""
	}
}

func paypalDetails(e *payment.APIError) interface{} {
	if len(e.Details) > 0 {
		return e.Details
	}
	return e.Message
}
