package summarizer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"docrag/internal/domain"
)

// Synthesizer produces the answer shown above search results.
type Synthesizer struct {
	llm    domain.LLM
	logger *zap.Logger
}

// NewSynthesizer creates a Synthesizer. llm may be nil, in which case every
// answer is extractive.
func NewSynthesizer(llm domain.LLM, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize answers query from snippets. With useLLM the LLM answer is
// returned verbatim; LLM failures fall back to Extractive.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, snippets []string, useLLM bool) string {
	combined := strings.Join(snippets, " ")
	if combined == "" {
		return ""
	}
	if !useLLM {
		return Extractive(query, combined)
	}
	if s.llm == nil {
		s.logger.Debug("llm answer requested but no llm configured")
		return Extractive(query, combined)
	}
	answer, err := s.llm.Summarize(ctx, query, snippets)
	if err != nil {
		s.logger.Warn("llm answer failed, using extractive answer", zap.Error(err))
		return Extractive(query, combined)
	}
	return answer
}
