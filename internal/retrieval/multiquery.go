package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/llm"
)

const (
	// DefaultParaphraseCount is how many alternative phrasings the expansion
	// strategy asks the model for.
	DefaultParaphraseCount = 3

	// DefaultPerQueryK is how many documents each paraphrase retrieves.
	DefaultPerQueryK = 4
)

const multiQueryPromptTemplate = `You are an AI language model assistant. Your task is to generate %d different versions of the given user question to retrieve relevant documents about medications from a vector database.
By generating multiple perspectives on the user question, your goal is to help the user overcome some of the limitations of distance-based similarity search.
Provide these alternative questions separated by newlines, with no numbering and no other text.
Original question: %s`

// MultiQueryConfig tunes the multi-query expansion strategy.
type MultiQueryConfig struct {
	// ParaphraseCount is the number of alternative phrasings requested.
	ParaphraseCount int

	// PerQueryK is the similarity-search depth per paraphrase.
	PerQueryK int
}

// ApplyDefaults sets default values for unset fields.
func (c *MultiQueryConfig) ApplyDefaults() {
	if c.ParaphraseCount == 0 {
		c.ParaphraseCount = DefaultParaphraseCount
	}
	if c.PerQueryK == 0 {
		c.PerQueryK = DefaultPerQueryK
	}
}

// MultiQuery is the query-expansion strategy: the model proposes several
// paraphrases of the question, each paraphrase is issued as an independent
// similarity query, and the per-paraphrase results are concatenated in the
// order the paraphrases were issued.
type MultiQuery struct {
	generator llm.Generator
	index     Index
	config    MultiQueryConfig
	logger    *zap.Logger
}

// NewMultiQuery creates the strategy.
func NewMultiQuery(generator llm.Generator, index Index, config MultiQueryConfig, logger *zap.Logger) (*MultiQuery, error) {
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrInvalidConfig)
	}
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	return &MultiQuery{generator: generator, index: index, config: config, logger: logger}, nil
}

// Retrieve expands the question and queries the index once per paraphrase.
// The per-paraphrase queries run as a concurrent task group joined before
// concatenation; results keep paraphrase order.
func (m *MultiQuery) Retrieve(ctx context.Context, question string) ([]conversation.Document, error) {
	ctx, span := retrievalTracer.Start(ctx, "MultiQuery.Retrieve")
	defer span.End()

	paraphrases, err := m.expand(ctx, question)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("expanded question", zap.Int("paraphrases", len(paraphrases)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	results := make([][]conversation.Document, len(paraphrases))
	errs := make([]error, len(paraphrases))

	for i, paraphrase := range paraphrases {
		wg.Add(1)
		go func(slot int, query string) {
			defer wg.Done()
			results[slot], errs[slot] = m.index.Query(ctx, query, m.config.PerQueryK)
			if errs[slot] != nil {
				cancel()
			}
		}(i, paraphrase)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("querying paraphrase %d: %w", i, err)
		}
	}

	var docs []conversation.Document
	for _, batch := range results {
		docs = append(docs, batch...)
	}
	return docs, nil
}

// expand asks the model for alternative phrasings of the question.
func (m *MultiQuery) expand(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf(multiQueryPromptTemplate, m.config.ParaphraseCount, question)
	text, err := m.generator.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("expanding question: %w", err)
	}

	paraphrases := parseParaphrases(text, m.config.ParaphraseCount)
	if len(paraphrases) == 0 {
		// A model that returns nothing usable still leaves the original
		// question as a query.
		paraphrases = []string{question}
	}
	return paraphrases, nil
}

// parseParaphrases splits model output into individual queries, one per
// line, stripping list markers the model may add despite instructions.
func parseParaphrases(text string, max int) []string {
	var queries []string
	for _, line := range strings.Split(text, "\n") {
		query := stripListMarker(strings.TrimSpace(line))
		if query == "" {
			continue
		}
		queries = append(queries, query)
		if len(queries) == max {
			break
		}
	}
	return queries
}

// stripListMarker removes a leading "1.", "2)", "-" or "*" marker.
func stripListMarker(line string) string {
	trimmed := strings.TrimLeft(line, "-* ")
	i := 0
	for i < len(trimmed) && unicode.IsDigit(rune(trimmed[i])) {
		i++
	}
	if i > 0 && i < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') {
		trimmed = trimmed[i+1:]
	}
	return strings.TrimSpace(trimmed)
}
