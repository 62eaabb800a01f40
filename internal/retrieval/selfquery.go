package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/llm"
)

// DefaultSelfQueryK is the default search depth for the self-query strategy.
const DefaultSelfQueryK = 4

// ErrUnknownAttribute is returned when the model proposes a filter attribute
// outside the fixed schema.
var ErrUnknownAttribute = errors.New("unknown filter attribute")

// attributeSchema is the fixed metadata schema the self-query strategy may
// filter on. Descriptions are given to the model verbatim.
var attributeSchema = map[string]string{
	"med_name":             "Name of the medication. If a common brand name exists it may be in brackets after",
	"document_description": "The specific topics about the medication",
	"page_description":     "What conditions the medication is used to treat. May contain alternate brand names",
}

const selfQueryPromptTemplate = `Your task is to translate a natural-language question about medications into a structured search against a document index.
The documents each describe information about a specific medication. Their metadata has exactly these string attributes:

%s

Given the question below, respond with a JSON object of the form
{"query": "<semantic search text>", "filter": {"<attribute>": "<value>"}}
where "filter" contains only attributes from the list above that the question clearly constrains. Use an empty object when no attribute applies. Do not invent attributes.

Question: %s`

// SelfQueryConfig tunes the attribute-filtered self-query strategy.
type SelfQueryConfig struct {
	// K is the similarity-search depth for the structured query.
	K int
}

// ApplyDefaults sets default values for unset fields.
func (c *SelfQueryConfig) ApplyDefaults() {
	if c.K == 0 {
		c.K = DefaultSelfQueryK
	}
}

// SelfQuery is the attribute-filtered strategy: the model translates the
// natural-language question into a semantic query plus a structured metadata
// filter, which is executed against the index in one call.
type SelfQuery struct {
	generator llm.Generator
	index     Index
	config    SelfQueryConfig
	logger    *zap.Logger
}

// NewSelfQuery creates the strategy.
func NewSelfQuery(generator llm.Generator, index Index, config SelfQueryConfig, logger *zap.Logger) (*SelfQuery, error) {
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
	return &SelfQuery{generator: generator, index: index, config: config, logger: logger}, nil
}

// structuredQuery is the schema the model is constrained to.
type structuredQuery struct {
	Query  string            `json:"query"`
	Filter map[string]string `json:"filter"`
}

// Retrieve translates the question and executes the filtered search.
func (s *SelfQuery) Retrieve(ctx context.Context, question string) ([]conversation.Document, error) {
	ctx, span := retrievalTracer.Start(ctx, "SelfQuery.Retrieve")
	defer span.End()

	prompt := fmt.Sprintf(selfQueryPromptTemplate, describeAttributes(), question)

	var structured structuredQuery
	if err := s.generator.CompleteJSON(ctx, prompt, &structured); err != nil {
		return nil, fmt.Errorf("constructing structured query: %w", err)
	}

	filters, err := validateFilter(structured.Filter)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(structured.Query)
	if query == "" {
		query = question
	}

	s.logger.Debug("executing self query",
		zap.String("query", query),
		zap.Int("filter_attributes", len(filters)),
	)

	if len(filters) == 0 {
		return s.index.Query(ctx, query, s.config.K)
	}
	return s.index.QueryWithFilters(ctx, query, s.config.K, filters)
}

// validateFilter checks the proposed filter against the fixed schema and
// converts it to the index filter shape. Unknown attributes are an error,
// not silently dropped.
func validateFilter(filter map[string]string) (map[string]interface{}, error) {
	if len(filter) == 0 {
		return nil, nil
	}
	filters := make(map[string]interface{}, len(filter))
	for attr, value := range filter {
		if _, ok := attributeSchema[attr]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		filters[attr] = value
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return filters, nil
}

// describeAttributes renders the attribute schema for the prompt in a
// stable order.
func describeAttributes() string {
	names := make([]string, 0, len(attributeSchema))
	for name := range attributeSchema {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, attributeSchema[name])
	}
	return strings.TrimRight(b.String(), "\n")
}
