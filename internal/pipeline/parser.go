package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/extract"
)

// GeminiParser is the AIParser implementation backed by the Gemini API.
// Every document costs exactly one request (plus at most one retry); the
// extraction instruction and the output contract live in prompts.go.
type GeminiParser struct {
	call         modelCaller
	model        string
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	prompt       string
	log          zerolog.Logger
}

// modelCaller issues a single model request and returns the raw response
// text. Tests substitute it to exercise the retry loop without a network.
type modelCaller func(ctx context.Context, model string, contents []*genai.Content) (string, error)

func geminiCaller(client *genai.Client) modelCaller {
	return func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}

// GeminiParserConfig carries the model tunables.
type GeminiParserConfig struct {
	Model        string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// NewGeminiParser creates a parser. Credentials come from the environment
// (GEMINI_API_KEY or application default credentials, depending on the
// genai client configuration).
func NewGeminiParser(ctx context.Context, cfg GeminiParserConfig, log zerolog.Logger) (*GeminiParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &GeminiParser{
		call:         geminiCaller(client),
		model:        cfg.Model,
		timeout:      cfg.Timeout,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		prompt:       buildExtractionPrompt(),
		log:          log,
	}, nil
}

// ExtractFromText asks the model to extract transactions from OCR or CSV text.
func (p *GeminiParser) ExtractFromText(ctx context.Context, text string) (*ModelOutput, error) {
	parts := []*genai.Part{
		{Text: p.prompt + "\n\nDocument text:\n" + text},
	}
	return p.generate(ctx, parts)
}

// ExtractFromImages asks the vision model to extract transactions from one
// or more page images.
func (p *GeminiParser) ExtractFromImages(ctx context.Context, pages []extract.ImagePage) (*ModelOutput, error) {
	parts := make([]*genai.Part, 0, len(pages)+1)
	parts = append(parts, &genai.Part{Text: p.prompt})
	for _, page := range pages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: page.MIMEType, Data: page.Data},
		})
	}
	return p.generate(ctx, parts)
}

// generate runs the model call under the per-attempt timeout, retrying once
// with backoff on transport failure. A second failure is fatal for this
// document only.
func (p *GeminiParser) generate(ctx context.Context, parts []*genai.Part) (*ModelOutput, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			p.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("Retrying model call")
			select {
			case <-time.After(p.retryBackoff):
			case <-ctx.Done():
				return nil, &domain.AIExtractionError{Reason: "model call canceled", Err: ctx.Err()}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		rawText, err := p.call(attemptCtx, p.model, contents)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		if rawText == "" {
			lastErr = fmt.Errorf("empty response from model")
			continue
		}
		return parseModelOutput(rawText)
	}

	return nil, &domain.AIExtractionError{
		Reason: fmt.Sprintf("model call failed after %d attempts", p.maxAttempts),
		Err:    lastErr,
	}
}
