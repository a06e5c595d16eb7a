// Package openai answers queries from retrieved snippets with an
// OpenAI-compatible chat completion endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const systemPrompt = "You answer questions using only the numbered excerpts provided. " +
	"Quote or paraphrase the excerpts, answer in the language of the question, " +
	"and reply with an empty answer if the excerpts do not contain it."

// ErrNoChoices is returned when the completion has no choices.
var ErrNoChoices = errors.New("completion returned no choices")

// Config configures the chat client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Summarizer implements domain.LLM.
type Summarizer struct {
	client openai.Client
	model  string
}

func New(cfg Config) *Summarizer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Summarizer{client: openai.NewClient(opts...), model: model}
}

// Summarize asks the model to answer query from snippets.
func (s *Summarizer) Summarize(ctx context.Context, query string, snippets []string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(query, snippets)),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(query string, snippets []string) string {
	var b strings.Builder
	b.WriteString("Excerpts:\n")
	for i, s := range snippets {
		b.WriteString("[" + strconv.Itoa(i+1) + "] ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
