package analysis

import (
	"context"
	"encoding/base64"

	"github.com/m-mizutani/curator/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

type openAIEvaluator struct {
	client adapter.OpenAI
}

// NewOpenAIEvaluator evaluates groups with OpenAI chat completions and inline data URL images
func NewOpenAIEvaluator(client adapter.OpenAI) Evaluator {
	return &openAIEvaluator{client: client}
}

func (e *openAIEvaluator) Evaluate(ctx context.Context, req *Request) (string, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 1+2*len(req.Images))
	parts = append(parts, openai.TextContentPart(req.Rubric))
	for _, img := range req.Images {
		if img.Data != nil {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
			}))
		}
		parts = append(parts, openai.TextContentPart(img.Caption))
	}

	resp, err := e.client.ChatCompletion(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		MaxTokens: openai.Int(2000),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to evaluate event group")
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", goerr.New("no choices in openai response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", goerr.New("empty openai response")
	}
	return content, nil
}
