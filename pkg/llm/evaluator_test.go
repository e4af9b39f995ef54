package llm_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/pkg/llm"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type fakeIndex struct {
	docs  []schema.Document
	err   error
	query string
	k     int
}

func (i *fakeIndex) Search(_ context.Context, query string, k int) ([]schema.Document, error) {
	i.query, i.k = query, k
	return i.docs, i.err
}

func (i *fakeIndex) Close(context.Context) error { return nil }

func humanPrompt(t *testing.T, m *fakeModel) string {
	t.Helper()
	require.Len(t, m.messages, 2)
	part, ok := m.messages[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestEvaluate(t *testing.T) {
	model := &fakeModel{reply: `{"decision":"yes","amount":"","justification":"12 months","clauses":["The term is 12 months."]}`}
	evaluator, err := llm.NewWithModel(llm.EvaluatorConfig{TopK: 3}, model)
	require.NoError(t, err)

	idx := &fakeIndex{docs: []schema.Document{
		{PageContent: "The term is 12 months.", Metadata: map[string]any{"page": 1}},
		{PageContent: "Premiums are paid yearly."},
	}}

	result, err := evaluator.Evaluate(context.Background(), "What is the term length?", idx)
	require.NoError(t, err)
	require.NotNil(t, result.Justification)
	assert.Equal(t, "12 months", *result.Justification)
	assert.Equal(t, "yes", result.Decision)
	assert.Equal(t, []string{"The term is 12 months."}, result.Clauses)

	assert.Equal(t, "What is the term length?", idx.query)
	assert.Equal(t, 3, idx.k)

	prompt := humanPrompt(t, model)
	assert.Contains(t, prompt, "[1] (page 1)\nThe term is 12 months.")
	assert.Contains(t, prompt, "[2]\nPremiums are paid yearly.")
	assert.Contains(t, prompt, "Question: What is the term length?")

	system, ok := model.messages[0].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Contains(t, system.Text, "justification")
}

func TestEvaluateErrors(t *testing.T) {
	idx := &fakeIndex{docs: []schema.Document{{PageContent: "text"}}}

	t.Run("model failure", func(t *testing.T) {
		evaluator, err := llm.NewWithModel(llm.EvaluatorConfig{}, &fakeModel{err: errors.New("connection refused")})
		require.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), "q", idx)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("search failure", func(t *testing.T) {
		evaluator, err := llm.NewWithModel(llm.EvaluatorConfig{}, &fakeModel{reply: "{}"})
		require.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), "q", &fakeIndex{err: errors.New("index gone")})
		assert.ErrorContains(t, err, "index gone")
	})

	t.Run("not json", func(t *testing.T) {
		evaluator, err := llm.NewWithModel(llm.EvaluatorConfig{}, &fakeModel{reply: "I cannot answer that."})
		require.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), "q", idx)
		assert.Error(t, err)
	})

	t.Run("empty question", func(t *testing.T) {
		evaluator, err := llm.NewWithModel(llm.EvaluatorConfig{}, &fakeModel{reply: "{}"})
		require.NoError(t, err)
		_, err = evaluator.Evaluate(context.Background(), "  ", idx)
		assert.Error(t, err)
	})
}

func TestNewWithModelValidation(t *testing.T) {
	_, err := llm.NewWithModel(llm.EvaluatorConfig{}, nil)
	assert.Error(t, err)

	_, err = llm.NewWithModel(llm.EvaluatorConfig{Temperature: 3}, &fakeModel{})
	assert.Error(t, err)

	_, err = llm.NewWithModel(llm.EvaluatorConfig{MaxTokens: -1}, &fakeModel{})
	assert.Error(t, err)
}

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		justification *string
		decision      string
		amount        string
		clauses       []string
		wantErr       bool
	}{
		{
			name:          "plain json",
			text:          `{"decision":"no","justification":"Not covered."}`,
			justification: strPtr("Not covered."),
			decision:      "no",
		},
		{
			name:          "fenced json",
			text:          "```json\n{\"decision\":\"yes\",\"justification\":\"Covered after 30 days.\"}\n```",
			justification: strPtr("Covered after 30 days."),
			decision:      "yes",
		},
		{
			name:          "surrounding prose",
			text:          "Here is the answer: {\"decision\":\"yes\",\"justification\":\"ok\"} hope it helps",
			justification: strPtr("ok"),
			decision:      "yes",
		},
		{
			name:     "missing justification",
			text:     `{"decision":"yes"}`,
			decision: "yes",
		},
		{
			name:          "empty justification is kept",
			text:          `{"justification":""}`,
			justification: strPtr(""),
		},
		{
			name:          "numeric amount",
			text:          `{"decision":"yes","amount":5000,"justification":"Covered up to 5000."}`,
			justification: strPtr("Covered up to 5000."),
			decision:      "yes",
			amount:        "5000",
		},
		{
			name:          "boolean decision",
			text:          `{"decision":true,"justification":"Maternity is covered."}`,
			justification: strPtr("Maternity is covered."),
			decision:      "true",
		},
		{
			name:          "single string clauses",
			text:          `{"decision":"no","justification":"Excluded.","clauses":"Section 4.2"}`,
			justification: strPtr("Excluded."),
			decision:      "no",
			clauses:       []string{"Section 4.2"},
		},
		{
			name:          "mixed clauses",
			text:          `{"justification":"See clauses.","clauses":["Section 1", 2, null]}`,
			justification: strPtr("See clauses."),
			clauses:       []string{"Section 1", "2"},
		},
		{
			name:     "null justification",
			text:     `{"decision":"yes","justification":null}`,
			decision: "yes",
		},
		{name: "no object", text: "nothing here", wantErr: true},
		{name: "broken json", text: `{"decision": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := llm.ParseEvaluation(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.justification, result.Justification)
			assert.Equal(t, tt.decision, result.Decision)
			assert.Equal(t, tt.amount, result.Amount)
			assert.Equal(t, tt.clauses, result.Clauses)
		})
	}
}

func TestEvaluatorWithOllama(t *testing.T) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		t.Skip("OLLAMA_BASE_URL not set")
	}

	evaluator, err := llm.NewWithConfig(llm.EvaluatorConfig{BaseURL: baseURL, Temperature: 0.1})
	require.NoError(t, err)

	idx := &fakeIndex{docs: []schema.Document{{PageContent: "The policy term is 12 months from the start date."}}}
	result, err := evaluator.Evaluate(context.Background(), "What is the term length?", idx)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func strPtr(s string) *string { return &s }
