package rerank

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
)

// Lexical implements Reranker with a term-overlap cross-score: each document
// is scored by the fraction of distinct question terms it contains. The
// similarity scores from first-pass retrieval are already consumed by that
// stage, so the rerank score stands on its own.
type Lexical struct {
	logger *zap.Logger
}

// NewLexical creates a lexical reranker.
func NewLexical(logger *zap.Logger) *Lexical {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lexical{logger: logger}
}

// Rerank scores each document against the question and returns the top topN.
// A topN of zero or less falls back to DefaultTopN. A question with no
// scoreable terms leaves the input order untouched.
func (r *Lexical) Rerank(ctx context.Context, question string, docs []conversation.Document, topN int) ([]conversation.Document, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(docs) == 0 {
		return []conversation.Document{}, nil
	}

	questionTerms := tokenize(question)

	type scored struct {
		doc   conversation.Document
		score float32
	}
	scoredDocs := make([]scored, len(docs))
	for i, doc := range docs {
		scoredDocs[i] = scored{doc: doc, score: termOverlap(questionTerms, tokenize(doc.Content))}
	}

	// Stable sort preserves original order among equal scores, which keeps
	// the result deterministic.
	sort.SliceStable(scoredDocs, func(i, j int) bool {
		return scoredDocs[i].score > scoredDocs[j].score
	})

	limit := topN
	if limit > len(scoredDocs) {
		limit = len(scoredDocs)
	}

	ranked := make([]conversation.Document, limit)
	for i := 0; i < limit; i++ {
		ranked[i] = scoredDocs[i].doc
	}

	r.logger.Debug("reranked documents",
		zap.Int("candidates", len(docs)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// tokenize splits text into lowercase terms, dropping stopwords and terms
// shorter than three characters.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 2 && !stopwords[field] {
			terms = append(terms, field)
		}
	}
	return terms
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// termOverlap returns the fraction of distinct question terms present in the
// document, in [0, 1].
func termOverlap(questionTerms, docTerms []string) float32 {
	if len(questionTerms) == 0 {
		return 0
	}

	docSet := make(map[string]struct{}, len(docTerms))
	for _, term := range docTerms {
		docSet[term] = struct{}{}
	}

	matched := make(map[string]struct{})
	for _, term := range questionTerms {
		if _, ok := docSet[term]; ok {
			matched[term] = struct{}{}
		}
	}

	distinct := make(map[string]struct{}, len(questionTerms))
	for _, term := range questionTerms {
		distinct[term] = struct{}{}
	}

	return float32(len(matched)) / float32(len(distinct))
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "these": true, "those": true, "are": true,
	"was": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"you": true, "your": true, "what": true, "which": true, "who": true,
	"when": true, "where": true, "why": true, "how": true, "about": true,
	"used": true, "use": true, "using": true, "take": true, "taking": true,
}
