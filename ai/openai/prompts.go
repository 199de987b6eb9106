package openai

import (
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// Keys used by the stuff-documents question answering chain.
const (
	documentsInputKey = "input_documents"
	questionInputKey  = "question"
	answerOutputKey   = "text"
)

// buildAnswerChain returns a stuff-documents QA chain for llm.
// An empty template selects langchaingo's default QA prompt.
func buildAnswerChain(llm llms.Model, template string) chains.StuffDocuments {
	if template == "" {
		return chains.LoadStuffQA(llm)
	}

	prompt := prompts.NewPromptTemplate(template, []string{"context", questionInputKey})
	return chains.NewStuffDocuments(chains.NewLLMChain(llm, prompt))
}
