package analysis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/gt"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

type mockGemini struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.contents = contents
	m.config = config
	return m.resp, m.err
}

type mockOpenAI struct {
	params openai.ChatCompletionNewParams
	resp   *openai.ChatCompletion
	err    error
}

func (m *mockOpenAI) ChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func sampleRequest() *analysis.Request {
	return &analysis.Request{
		Rubric: "rubric text",
		Images: []analysis.Image{
			{Position: 1, Name: "a.jpg", Caption: "(Photo 1: a.jpg)", Data: []byte("aaa"), MIMEType: "image/jpeg"},
			{Position: 2, Name: "b.jpg", Caption: "(Photo 2: b.jpg, preview unavailable)", MIMEType: "image/jpeg"},
		},
	}
}

func TestGeminiEvaluator(t *testing.T) {
	mock := &mockGemini{
		resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: `{"event_name":"Walk",`},
					{Text: `"scores":[1,2],"best_index":1}`},
				}}},
			},
		},
	}

	evaluator, err := analysis.NewGeminiEvaluator(mock)
	gt.NoError(t, err)

	text, err := evaluator.Evaluate(context.Background(), sampleRequest())
	gt.NoError(t, err)
	gt.Equal(t, text, `{"event_name":"Walk","scores":[1,2],"best_index":1}`)

	gt.A(t, mock.contents).Length(1)
	// rubric, image + caption, caption only
	gt.A(t, mock.contents[0].Parts).Length(4)
	gt.Equal(t, mock.contents[0].Parts[0].Text, "rubric text")
	gt.NotNil(t, mock.contents[0].Parts[1].InlineData)
	gt.Equal(t, mock.contents[0].Parts[3].Text, "(Photo 2: b.jpg, preview unavailable)")

	gt.Equal(t, mock.config.ResponseMIMEType, "application/json")
	schema := mock.config.ResponseSchema
	gt.NotNil(t, schema)
	gt.Equal(t, schema.Type, genai.TypeObject)
	gt.Map(t, schema.Properties).HasKey("event_name")
	gt.Map(t, schema.Properties).HasKey("best_index")
	scores := schema.Properties["scores"]
	gt.Equal(t, scores.Type, genai.TypeArray)
	gt.Equal(t, scores.Items.Type, genai.TypeInteger)
	gt.Equal(t, *scores.Items.Maximum, 100.0)
}

func TestGeminiEvaluatorThinkingBudget(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: `{}`}}}},
		},
	}

	t.Run("disabled by default", func(t *testing.T) {
		mock := &mockGemini{resp: resp}
		evaluator, err := analysis.NewGeminiEvaluator(mock)
		gt.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), sampleRequest())
		gt.NoError(t, err)
		gt.NotNil(t, mock.config.ThinkingConfig)
		gt.Equal(t, *mock.config.ThinkingConfig.ThinkingBudget, int32(0))
	})

	t.Run("model default", func(t *testing.T) {
		mock := &mockGemini{resp: resp}
		evaluator, err := analysis.NewGeminiEvaluator(mock, analysis.WithThinkingBudget(nil))
		gt.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), sampleRequest())
		gt.NoError(t, err)
		gt.Nil(t, mock.config.ThinkingConfig)
	})

	t.Run("explicit budget", func(t *testing.T) {
		mock := &mockGemini{resp: resp}
		budget := int32(512)
		evaluator, err := analysis.NewGeminiEvaluator(mock, analysis.WithThinkingBudget(&budget))
		gt.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), sampleRequest())
		gt.NoError(t, err)
		gt.Equal(t, *mock.config.ThinkingConfig.ThinkingBudget, int32(512))
	})
}

func TestDefaultThinkingBudget(t *testing.T) {
	for _, model := range []string{"", "gemini-2.5-flash", "gemini-2.5-Flash-Lite"} {
		budget := analysis.DefaultThinkingBudget(model)
		gt.NotNil(t, budget)
		gt.Equal(t, *budget, int32(0))
	}
	gt.Nil(t, analysis.DefaultThinkingBudget("gemini-2.5-pro"))
}

func TestGeminiEvaluatorErrors(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		evaluator, err := analysis.NewGeminiEvaluator(&mockGemini{err: errors.New("quota exceeded")})
		gt.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), sampleRequest())
		gt.Error(t, err)
	})

	t.Run("empty candidates", func(t *testing.T) {
		evaluator, err := analysis.NewGeminiEvaluator(&mockGemini{resp: &genai.GenerateContentResponse{}})
		gt.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), sampleRequest())
		gt.Error(t, err)
	})
}

func TestOpenAIEvaluator(t *testing.T) {
	mock := &mockOpenAI{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: `{"event_name":"Walk"}`}},
			},
		},
	}

	text, err := analysis.NewOpenAIEvaluator(mock).Evaluate(context.Background(), sampleRequest())
	gt.NoError(t, err)
	gt.Equal(t, text, `{"event_name":"Walk"}`)
	gt.A(t, mock.params.Messages).Length(1)
	gt.NotNil(t, mock.params.ResponseFormat.OfJSONObject)
}

func TestOpenAIEvaluatorErrors(t *testing.T) {
	_, err := analysis.NewOpenAIEvaluator(&mockOpenAI{err: errors.New("unauthorized")}).Evaluate(context.Background(), sampleRequest())
	gt.Error(t, err)

	_, err = analysis.NewOpenAIEvaluator(&mockOpenAI{resp: &openai.ChatCompletion{}}).Evaluate(context.Background(), sampleRequest())
	gt.Error(t, err)
}
