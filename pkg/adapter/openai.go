package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is the chat completion client used to evaluate event groups
type OpenAI interface {
	ChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type OpenAIClient struct {
	client openai.Client
	model  string
}

type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	model   string
	baseURL string
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithOpenAIBaseURL points the client at an OpenAI compatible endpoint
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	o := &openAIOptions{
		model: openai.ChatModelGPT4o,
	}
	for _, opt := range opts {
		opt(o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// one request per event group
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(reqOpts...),
		model:  o.model,
	}
}

func (c *OpenAIClient) ChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if params.Model == "" {
		params.Model = c.model
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion", goerr.V("model", params.Model))
	}
	return resp, nil
}
