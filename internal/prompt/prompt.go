// Package prompt composes the system/user prompt pair sent to the generation provider.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Manjussha/inkd/internal/tone"
)

// Input holds the request fields that shape the prompts.
type Input struct {
	Text       string
	Tone       string // optional free-form tone descriptor
	SampleText string // optional style sample, used only together with Tone
}

// Pair is the final prompt pair for one provider call.
type Pair struct {
	System string
	User   string
}

// Build composes the prompts for in under preset p.
//
// The user prompt is the preset template with the literal input text
// interpolated. The system prompt is the preset instructions plus a tone
// clause when a free-form descriptor is given:
//
//	tone + sample: "Please write in a T tone, similar to this example style:\n\"S\""
//	tone only:     "Please write in a T tone."
func Build(in Input, p tone.Preset) Pair {
	system := strings.TrimRight(p.System, "\n")
	switch {
	case in.Tone != "" && in.SampleText != "":
		system += fmt.Sprintf("\n\nPlease write in a %s tone, similar to this example style:\n\"%s\"", in.Tone, in.SampleText)
	case in.Tone != "":
		system += fmt.Sprintf("\n\nPlease write in a %s tone.", in.Tone)
	}
	return Pair{
		System: system,
		User:   strings.Replace(strings.TrimRight(p.User, "\n"), tone.Placeholder, in.Text, 1),
	}
}
