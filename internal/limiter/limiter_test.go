package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLimit_OpenAI(t *testing.T) {
	d := New("openai")
	assert.True(t, d.DetectLimit("Rate limit reached for gpt-4 in organization org-x"))
	assert.True(t, d.DetectLimit("You exceeded your current quota (insufficient_quota)"))
	assert.False(t, d.DetectLimit("The model produced a response"))
}

func TestDetectLimit_Azure(t *testing.T) {
	d := New("azure")
	assert.True(t, d.DetectLimit("Requests to the deployment exceeded tokens per minute"))
	assert.False(t, d.DetectLimit("content filtered"))
}

func TestDetectLimit_UnknownProviderUsesDefault(t *testing.T) {
	d := New("something-else")
	assert.True(t, d.DetectLimit("429 Too Many Requests"))
}

func TestErrRateLimit(t *testing.T) {
	err := &ErrRateLimit{Line: "rate limit hit"}
	assert.Contains(t, err.Error(), "rate limit detected")
}
