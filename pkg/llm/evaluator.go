package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/outputparser"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/internal/types"
)

const (
	defaultSystemTemplate = "You answer questions about a single document, such as an insurance policy or a contract. " +
		"Use only the numbered clauses provided. If they do not contain the answer, say so in the justification. " +
		"Quote figures, periods and conditions exactly as written."
	defaultContextTemplate = "Clauses:\n%s\nQuestion: %s"
)

// ErrEmptyResponse is returned when the model produces no choices.
var ErrEmptyResponse = errors.New("empty response from LLM")

// EvaluatorConfig represents the configuration for an evaluator.
type EvaluatorConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	TopK            int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string // Ollama server URL
}

// evaluationSchema describes the expected JSON reply to the model.
type evaluationSchema struct {
	Decision      string   `json:"decision" describe:"short direct answer, e.g. yes, no or a value"`
	Amount        string   `json:"amount" describe:"amount, limit or duration involved, empty if none"`
	Justification string   `json:"justification" describe:"one or two sentences answering the question from the clauses"`
	Clauses       []string `json:"clauses" describe:"verbatim clauses the answer relies on"`
}

// Evaluator answers one question against an index by retrieving the most
// relevant chunks and asking the LLM for a structured decision.
type Evaluator struct {
	config EvaluatorConfig
	llm    llms.Model
	format string
}

// NewWithConfig creates an Evaluator backed by an Ollama chat model.
func NewWithConfig(config EvaluatorConfig) (*Evaluator, error) {
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, llm)
}

// NewWithModel creates an Evaluator around an existing model.
func NewWithModel(config EvaluatorConfig, model llms.Model) (*Evaluator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = defaultContextTemplate
	}

	parser, err := outputparser.NewDefined(evaluationSchema{})
	if err != nil {
		return nil, fmt.Errorf("failed to build output schema: %w", err)
	}

	return &Evaluator{
		config: config,
		llm:    model,
		format: parser.GetFormatInstructions(),
	}, nil
}

// Evaluate retrieves context for question from idx and returns the model's
// structured answer.
func (e *Evaluator) Evaluate(ctx context.Context, question string, idx types.Index) (*models.Evaluation, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is empty")
	}

	passages, err := idx.Search(ctx, question, e.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, e.config.SystemTemplate+"\n\n"+e.format),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(e.config.ContextTemplate, formatPassages(passages), question)),
	}

	response, err := e.llm.GenerateContent(ctx, content,
		llms.WithTemperature(e.config.Temperature),
		llms.WithMaxTokens(e.config.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return nil, ErrEmptyResponse
	}

	return ParseEvaluation(response.Choices[0].Content)
}

func formatPassages(docs []schema.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if page, ok := doc.Metadata["page"]; ok {
			fmt.Fprintf(&b, "[%d] (page %v)\n%s\n\n", i+1, page, doc.PageContent)
		} else {
			fmt.Fprintf(&b, "[%d]\n%s\n\n", i+1, doc.PageContent)
		}
	}
	return b.String()
}

// ParseEvaluation decodes the model's reply. Markdown fences and text around
// the JSON object are tolerated.
func ParseEvaluation(text string) (*models.Evaluation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("could not find JSON object in LLM output: %q", truncate(text, 200))
	}

	// Models in JSON mode are loose about field types, e.g. a numeric amount
	// or a single string for clauses, so every field is decoded on its own.
	var raw struct {
		Decision      json.RawMessage `json:"decision"`
		Amount        json.RawMessage `json:"amount"`
		Justification json.RawMessage `json:"justification"`
		Clauses       json.RawMessage `json:"clauses"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("could not parse generated JSON: %w", err)
	}

	evaluation := &models.Evaluation{
		Decision: rawString(raw.Decision),
		Amount:   rawString(raw.Amount),
		Clauses:  rawStrings(raw.Clauses),
	}
	if !isNull(raw.Justification) {
		justification := rawString(raw.Justification)
		evaluation.Justification = &justification
	}
	return evaluation, nil
}

func isNull(msg json.RawMessage) bool {
	return len(msg) == 0 || string(msg) == "null"
}

// rawString returns a JSON string's value, or the literal text of any other
// value.
func rawString(msg json.RawMessage) string {
	if isNull(msg) {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}

func rawStrings(msg json.RawMessage) []string {
	if isNull(msg) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return []string{rawString(msg)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !isNull(item) {
			out = append(out, rawString(item))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
