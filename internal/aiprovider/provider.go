// Package aiprovider is a concrete AI Model Provider (spec §6): it
// wraps the Gemini API for the AI Code Review scanner (spec §4.2.6).
//
// Grounded on the project's existing GenAI client wiring
// (internal/embedding's genai.Client construction), generalized from
// embeddings to text generation via Models.GenerateContent.
package aiprovider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/agentops/sge/internal/scanner"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// Provider calls the Gemini API for code review completions.
type Provider struct {
	client *genai.Client
	model  string
}

// New constructs a Provider. model defaults to DefaultModel when empty.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("aiprovider: API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete sends req's system and user prompts to Gemini and returns the
// raw text response, which the scanner tolerantly parses as JSON (spec
// §6 "AI Model Provider").
func (p *Provider) Complete(ctx context.Context, req scanner.AIModelRequest) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(req.UserPrompt, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("genai: no candidates returned")
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("genai: empty response text")
	}
	return text, nil
}
