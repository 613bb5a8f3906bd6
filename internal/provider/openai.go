package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Manjussha/inkd/internal/limiter"
	"github.com/Manjussha/inkd/internal/prompt"
)

// OpenAI calls an OpenAI-compatible Chat Completions endpoint.
type OpenAI struct {
	baseURL  string
	apiKey   string
	model    string
	client   *http.Client
	detector *limiter.Detector
}

// NewOpenAI creates an OpenAI client. Timeouts come from the caller's context.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	return &OpenAI{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{},
		detector: limiter.New("openai"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate sends one chat completion request and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, p prompt.Pair, s Sampling) (string, error) {
	if o.apiKey == "" {
		return "", errors.New("provider.Generate: OPENAI_API_KEY is not configured")
	}
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		MaxTokens:        s.MaxTokens,
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		FrequencyPenalty: s.FrequencyPenalty,
		PresencePenalty:  s.PresencePenalty,
	})
	if err != nil {
		return "", fmt.Errorf("provider.Generate: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("provider.Generate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider.Generate: do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("provider.Generate: read body: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if decodeErr == nil && out.Error != nil {
			apiErr.Message = out.Error.Message
			apiErr.Type = out.Error.Type
		}
		if resp.StatusCode == http.StatusTooManyRequests || o.detector.DetectLimit(apiErr.Message+" "+apiErr.Type) {
			return "", fmt.Errorf("provider.Generate: %w: %w", &limiter.ErrRateLimit{Line: apiErr.Message}, apiErr)
		}
		return "", fmt.Errorf("provider.Generate: %w", apiErr)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("provider.Generate: decode: %w", decodeErr)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("provider.Generate: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}
