// Package anyllm provides a gloss translator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface. It is
// the translator of choice for local deployments where the gloss model runs
// behind ollama or llama.cpp rather than a hosted API.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "gloss-t5", anyllmlib.WithBaseURL("http://localhost:11434"))
//	gloss, err := p.Translate(ctx, "hello my name is sam")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxsign/voxsign/pkg/provider/translate"
)

// systemPrompt matches the instruction register of the hosted translator so
// both backends produce interchangeable gloss output.
const systemPrompt = "You are a translator from English to ASL gloss notation. " +
	"Reply with only the gloss: upper-case sign tokens in ASL signing order, " +
	"separated by single spaces. Fingerspell proper nouns with an FS- prefix " +
	"(e.g., FS-SAM). Do not add punctuation or commentary."

// Provider implements translate.Translator by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// Compile-time assertion that Provider implements translate.Translator.
var _ translate.Translator = (*Provider)(nil)

// New creates a new Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "ollama", "llamacpp", "llamafile".
// model is the specific model to use (e.g., a fine-tuned gloss model tag).
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend falls
// back to its environment variable.
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// NewOllama creates a Provider backed by a local ollama server.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// NewLlamaCpp creates a Provider backed by a running llama.cpp server.
// Without options, it connects to http://127.0.0.1:8080/v1.
func NewLlamaCpp(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("llamacpp", model, opts...)
}

// createBackend creates the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, ollama, llamacpp, llamafile", providerName)
	}
}

// Translate implements translate.Translator.
func (p *Provider) Translate(ctx context.Context, text string) (string, error) {
	clean := translate.CleanInput(text)
	if clean == "" {
		return "", nil
	}

	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: "translate English to ASL: " + clean},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}

	return translate.CleanGloss(resp.Choices[0].Message.ContentString()), nil
}
