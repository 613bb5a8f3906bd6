package handlers

import (
	"log"
	"net/http"

	"github.com/Manjussha/inkd/internal/humanize"
)

type humanizeResponse struct {
	RequestID        string `json:"requestId"`
	Original         string `json:"original"`
	Humanized        string `json:"humanized"`
	Success          bool   `json:"success"`
	WordsUsed        int64  `json:"wordsUsed"`
	RemainingCredits int64  `json:"remainingCredits"`
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "inkd server is running"})
}

// Humanize handles POST /api/humanize.
func (h *Handler) Humanize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string `json:"text"`
		Tone       string `json:"tone"`
		TonePreset string `json:"tonePreset"`
		SampleText string `json:"sampleText"`
		UserID     string `json:"userId"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return
	}
	log.Printf("handlers.Humanize: user=%s preset=%q words=%d",
		req.UserID, req.TonePreset, humanize.CountWords(req.Text))

	res, err := h.humanizer.Handle(r.Context(), humanize.Request{
		Text:       req.Text,
		UserID:     req.UserID,
		TonePreset: req.TonePreset,
		Tone:       req.Tone,
		SampleText: req.SampleText,
	})
	if err != nil {
		writeHumanizeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, humanizeResponse{
		RequestID:        res.RequestID,
		Original:         res.Original,
		Humanized:        res.Humanized,
		Success:          true,
		WordsUsed:        res.WordsUsed,
		RemainingCredits: res.RemainingCredits,
	})
}

// ListTones handles GET /api/tones.
func (h *Handler) ListTones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tones":   h.catalog.IDs(),
		"default": h.catalog.Fallback().ID,
	})
}
