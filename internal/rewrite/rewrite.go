// Package rewrite transforms a raw user question into a form better suited to
// similarity search: spelling-corrected medication names, clarified intent.
package rewrite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/llm"
)

const rewritePromptTemplate = `Look at the question and try to reason about the underlying semantic intent and meaning. Pay particular attention to any key medical terms.
Here is the initial question:

-------
%s
-------

Correct any spelling errors in medication names and formulate an improved question for searching medical information.
Only respond with the reworded question, with no other preamble or conversation:`

// Rewriter produces the retrieval-optimized form of a question.
type Rewriter struct {
	generator llm.Generator
	logger    *zap.Logger
}

// New creates a Rewriter backed by the given generator.
func New(generator llm.Generator, logger *zap.Logger) (*Rewriter, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{generator: generator, logger: logger}, nil
}

// Rewrite returns the improved search query for the question. The caller
// records it both as the rewritten question and as an assistant transcript
// entry; the rewrite is deliberately part of the visible conversation.
func (r *Rewriter) Rewrite(ctx context.Context, question string) (string, error) {
	rewritten, err := r.generator.Complete(ctx, fmt.Sprintf(rewritePromptTemplate, question))
	if err != nil {
		return "", fmt.Errorf("rewriting question: %w", err)
	}

	r.logger.Debug("rewrote question",
		zap.Int("original_len", len(question)),
		zap.Int("rewritten_len", len(rewritten)),
	)
	return rewritten, nil
}
