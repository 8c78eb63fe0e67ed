package completion

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// DefaultGeminiModel is a small non-thinking model, so the short output
// budget goes entirely to the answer.
const DefaultGeminiModel = "gemini-2.5-flash-lite"

// RetiredGeminiModel was the default in older config files; the API no
// longer serves it.
const RetiredGeminiModel = "gemini-pro"

// Gemini calls the Gemini API generateContent endpoint.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

// NewGemini builds a client authenticated with apiKey. An empty baseURL
// means generativelanguage.googleapis.com.
func NewGemini(ctx context.Context, apiKey, baseURL, model string, timeout time.Duration, logger *log.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if logger == nil {
		logger = log.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &Gemini{client: client, model: model, timeout: timeout, logger: logger}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string, s Sampling) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		// a nil pointer would drop temperature 0 from the request
		Temperature:     genai.Ptr(float32(s.Temperature)),
		MaxOutputTokens: int32(s.MaxOutputTokens),
	})
	if err != nil {
		return "", errors.Wrap(err, "gemini generateContent")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", ErrNoText
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoText
	}
	g.logger.Debug("gemini answered", "model", g.model, "chars", b.Len())
	return b.String(), nil
}
