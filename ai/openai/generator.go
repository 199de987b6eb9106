package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// ErrUnexpectedOutput is returned when the QA chain does not yield answer text.
var ErrUnexpectedOutput = errors.New("answer chain returned no text")

// AnswerGenerator implements ai.AnswerGenerator using a langchaingo
// stuff-documents chain over an OpenAI-compatible chat model.
type AnswerGenerator struct {
	chain  chains.StuffDocuments
	logger *slog.Logger
}

// newAnswerGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newAnswerGenerator(config *ai.Config) (*AnswerGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.Token()),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator client: %w", err)
	}

	return newAnswerGeneratorWithModel(client, config.AnswerPrompt), nil
}

// newAnswerGeneratorWithModel builds a generator around any langchaingo model.
func newAnswerGeneratorWithModel(llm llms.Model, template string) *AnswerGenerator {
	return &AnswerGenerator{
		chain:  buildAnswerChain(llm, template),
		logger: slog.Default().With("component", "openai-generator"),
	}
}

// NewAnswerGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.AnswerGenerator interface to enforce abstraction.
func NewAnswerGenerator(config *ai.Config) (ai.AnswerGenerator, error) {
	return newAnswerGenerator(config)
}

// GenerateAnswer runs the QA chain with each context string as one document.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, contextDocs []string) (string, error) {
	docs := make([]schema.Document, len(contextDocs))
	for i, text := range contextDocs {
		docs[i] = schema.Document{PageContent: text}
	}

	g.logger.Debug("generating answer", "question_length", len(question), "documents", len(docs))

	result, err := chains.Call(ctx, g.chain, map[string]any{
		documentsInputKey: docs,
		questionInputKey:  question,
	})
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", err
	}

	text, ok := result[answerOutputKey].(string)
	if !ok {
		g.logger.Error("answer chain output missing text", "keys", len(result))
		return "", ErrUnexpectedOutput
	}

	return text, nil
}
