// Package limiter detects rate limit and quota signals in provider diagnostics.
package limiter

import "strings"

// Rate limit patterns per provider.
var patterns = map[string][]string{
	"openai": {
		"rate limit",
		"rate_limit",
		"too many requests",
		"429",
		"insufficient_quota",
		"overloaded",
	},
	"azure": {
		"rate limit",
		"429",
		"quota exceeded",
		"tokens per minute",
	},
}

// Detector checks provider messages for rate limit signals.
type Detector struct {
	provider string
	keywords []string
}

// New creates a Detector for the given provider. Unknown providers use the openai list.
func New(provider string) *Detector {
	kws := patterns[provider]
	if kws == nil {
		kws = patterns["openai"]
	}
	return &Detector{provider: provider, keywords: kws}
}

// DetectLimit returns true if the message contains a rate limit signal.
func (d *Detector) DetectLimit(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ErrRateLimit is returned by a provider client when the provider throttled the call.
type ErrRateLimit struct {
	Line string
}

func (e *ErrRateLimit) Error() string {
	return "rate limit detected: " + e.Line
}
