package analysis

import (
	"context"
	"strings"

	"github.com/m-mizutani/curator/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

type geminiEvaluator struct {
	gemini         adapter.Gemini
	schema         *genai.Schema
	thinkingBudget *int32
}

type GeminiOption func(*geminiEvaluator)

// WithThinkingBudget sets the thinking token budget. nil leaves thinking to
// the model default, which models that cannot disable thinking require.
func WithThinkingBudget(budget *int32) GeminiOption {
	return func(e *geminiEvaluator) {
		e.thinkingBudget = budget
	}
}

// DefaultThinkingBudget disables thinking for flash models (and the adapter
// default model when model is empty). Other models keep their own default.
func DefaultThinkingBudget(model string) *int32 {
	if model != "" && !strings.Contains(strings.ToLower(model), "flash") {
		return nil
	}
	budget := int32(0)
	return &budget
}

// NewGeminiEvaluator evaluates groups with Gemini structured output
func NewGeminiEvaluator(gemini adapter.Gemini, opts ...GeminiOption) (Evaluator, error) {
	jsSchema, err := ResponseSchema()
	if err != nil {
		return nil, err
	}
	schema, err := convertJSONSchemaToGenai(jsSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert response schema")
	}

	e := &geminiEvaluator{
		gemini:         gemini,
		schema:         schema,
		thinkingBudget: DefaultThinkingBudget(""),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *geminiEvaluator) Evaluate(ctx context.Context, req *Request) (string, error) {
	parts := make([]*genai.Part, 0, 1+2*len(req.Images))
	parts = append(parts, genai.NewPartFromText(req.Rubric))
	for _, img := range req.Images {
		if img.Data != nil {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		parts = append(parts, genai.NewPartFromText(img.Caption))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   e.schema,
		MaxOutputTokens:  2000,
	}
	if e.thinkingBudget != nil {
		budget := *e.thinkingBudget
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &budget,
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := e.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to evaluate event group")
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("invalid response structure from gemini")
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}
	if len(texts) == 0 {
		return "", goerr.New("no text in gemini response")
	}

	return strings.Join(texts, ""), nil
}
