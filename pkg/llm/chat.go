package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

//nolint:lll
const stuffQATemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

// Temperature is fixed: answers should lean deterministic.
const Temperature = 0.0

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model     string
	MaxTokens int
	APIKey    string
	BaseURL   string // OpenAI compatible endpoint
}

// ChatEngine answers questions with a retrieval "stuff" chain on top of a
// completion model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by OpenAI.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine around an existing model.
func NewWithModel(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 256
	}
	return config, nil
}

// Chain builds the retrieval QA chain that stuffs every retrieved document
// into a single prompt. The completion is returned as the model produced it.
func (ce *ChatEngine) Chain(retriever schema.Retriever) chains.Chain {
	llmChain := chains.NewLLMChain(ce.llm, prompts.NewPromptTemplate(
		stuffQATemplate,
		[]string{"context", "question"},
	))
	llmChain.OutputParser = rawOutput{}

	return chains.NewRetrievalQA(chains.NewStuffDocuments(llmChain), retriever)
}

// rawOutput passes the completion through untouched.
type rawOutput struct{}

var _ schema.OutputParser[any] = rawOutput{}

func (rawOutput) GetFormatInstructions() string { return "" }

func (rawOutput) Parse(text string) (any, error) { return text, nil }

func (rawOutput) ParseWithPrompt(text string, _ llms.PromptValue) (any, error) { return text, nil }

func (rawOutput) Type() string { return "raw_output_parser" }

// Answer runs the chain for one question and returns the raw completion.
func (ce *ChatEngine) Answer(ctx context.Context, chain chains.Chain, question string) (string, error) {
	answer, err := chains.Run(ctx, chain, question,
		chains.WithTemperature(Temperature),
		chains.WithMaxTokens(ce.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	return answer, nil
}
