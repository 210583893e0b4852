// Package aibridge forwards text prompts to the Gemini generative-AI
// service. The bridge is an injected dependency of the HTTP service; when
// no API key is configured the Unconfigured variant is used and the /ai
// routes short-circuit without attempting any call.
package aibridge

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Generate when no API key was provided.
var ErrNotConfigured = errors.New("aibridge: gemini api key not configured")

// Client generates text from a prompt.
type Client interface {
	// Generate returns the generated text for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Configured reports whether the bridge can serve requests.
	Configured() bool
	// Model returns the model identifier, or "" when unconfigured.
	Model() string
}

// Unconfigured is the explicit no-API-key variant of Client.
type Unconfigured struct{}

// Generate always fails with ErrNotConfigured.
func (Unconfigured) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// Configured reports false.
func (Unconfigured) Configured() bool { return false }

// Model returns "".
func (Unconfigured) Model() string { return "" }
