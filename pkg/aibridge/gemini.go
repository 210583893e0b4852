package aibridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const logPrefix = "aibridge:gemini"

// Gemini is a Client backed by the Gemini API. One fixed model is used;
// construction failure surfaces at startup rather than falling back across
// model names.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client for the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create client: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Gemini client ready, model %s", logPrefix, model))
	return &Gemini{client: client, model: model}, nil
}

// Generate sends prompt to the configured model and returns the response
// text with surrounding whitespace trimmed.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%s - generate content: %w", logPrefix, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Configured reports true.
func (g *Gemini) Configured() bool { return true }

// Model returns the configured model identifier.
func (g *Gemini) Model() string { return g.model }
