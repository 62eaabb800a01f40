// Package answer produces the final assistant message: a grounded answer
// synthesized from the ranked documents, or a scoped refusal with safety
// signposting when the question is out of domain.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/llm"
)

const synthesizePromptTemplate = `You are an assistant for answering questions about medications.
Rely heavily on the following pieces of retrieved context to answer the question.
In your response do not use the phrase "in the provided context", instead say "on the NHS website".
If you don't know the answer, just say that you are unable to find any specific information from the NHS Medicines website, but offer adjacent relevant advice from the provided context.
Question: %s
Context: %s
Answer:`

// Synthesizer generates the grounded answer from the ranked documents.
type Synthesizer struct {
	generator llm.Generator
	logger    *zap.Logger
}

// NewSynthesizer creates a Synthesizer backed by the given generator.
func NewSynthesizer(generator llm.Generator, logger *zap.Logger) (*Synthesizer, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{generator: generator, logger: logger}, nil
}

// Synthesize answers the question strictly from the supplied documents. An
// empty document set is valid; the fixed instruction makes the model state
// that no specific information was found rather than fabricate.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, docs []conversation.Document) (string, error) {
	prompt := fmt.Sprintf(synthesizePromptTemplate, question, ContextBlock(docs))

	text, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesizing answer: %w", err)
	}

	s.logger.Debug("synthesized answer",
		zap.Int("context_documents", len(docs)),
		zap.Int("answer_len", len(text)),
	)
	return text, nil
}

// ContextBlock concatenates document contents with a blank-line separator,
// preserving ranked order.
func ContextBlock(docs []conversation.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n")
}
