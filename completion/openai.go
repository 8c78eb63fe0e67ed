package completion

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/pkg/errors"
)

// DefaultOpenAIModel is used when the openai provider is selected without a model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *log.Logger
}

// NewOpenAI builds a client. An empty baseURL means api.openai.com.
func NewOpenAI(apiKey, baseURL, model string, timeout time.Duration, logger *log.Logger, opts ...oaioption.RequestOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = log.Default()
	}
	reqOpts := []oaioption.RequestOption{
		oaioption.WithAPIKey(apiKey),
		oaioption.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, oaioption.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAI{
		client:  openai.NewClient(reqOpts...),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, s Sampling) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:       o.model,
		Temperature: param.NewOpt(s.Temperature),
		MaxTokens:   param.NewOpt(s.MaxOutputTokens),
	})
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", ErrNoText
	}
	o.logger.Debug("openai answered", "model", o.model, "chars", len(completion.Choices[0].Message.Content))
	return completion.Choices[0].Message.Content, nil
}
