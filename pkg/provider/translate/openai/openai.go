// Package openai provides a gloss translator backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxsign/voxsign/pkg/provider/translate"
)

// systemPrompt instructs the model to act as the English → ASL gloss
// translation stage. The "translate English to ASL:" register matches the
// instruction prefix the original gloss model was trained with.
const systemPrompt = "You are a translator from English to ASL gloss notation. " +
	"Reply with only the gloss: upper-case sign tokens in ASL signing order, " +
	"separated by single spaces. Fingerspell proper nouns with an FS- prefix " +
	"(e.g., FS-SAM). Do not add punctuation or commentary."

// defaultMaxTokens bounds the gloss length; gloss output is shorter than its
// English source.
const defaultMaxTokens = 256

// Provider implements translate.Translator using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// Compile-time assertion that Provider implements translate.Translator.
var _ translate.Translator = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to point the
// translator at an OpenAI-compatible local server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI gloss translator.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Translate implements translate.Translator.
func (p *Provider) Translate(ctx context.Context, text string) (string, error) {
	clean := translate.CleanInput(text)
	if clean == "" {
		return "", nil
	}

	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage("translate English to ASL: " + clean),
		},
		MaxTokens: oai.Int(defaultMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	return translate.CleanGloss(resp.Choices[0].Message.Content), nil
}
