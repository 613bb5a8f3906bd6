// Package provider calls the external generative-language service.
package provider

import (
	"context"
	"fmt"

	"github.com/Manjussha/inkd/internal/prompt"
)

// Sampling is the generation tuning sent with every request.
type Sampling struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
}

// DefaultSampling favours varied, non-repetitive output. Not request-configurable.
var DefaultSampling = Sampling{
	Temperature:      1.3,
	TopP:             0.95,
	FrequencyPenalty: 0.4,
	PresencePenalty:  0.3,
	MaxTokens:        1000,
}

// Generator produces rewritten text for a prompt pair.
// Implementations must honour ctx cancellation and must not retry on their own
// in a way that is visible to the caller as a second charge.
type Generator interface {
	Generate(ctx context.Context, p prompt.Pair, s Sampling) (string, error)
}

// APIError is a non-success response from the provider.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("provider: status %d (%s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("provider: status %d: %s", e.Status, e.Message)
}
