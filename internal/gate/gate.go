// Package gate decides whether an incoming question is in-domain for the
// medication corpus before any retrieval work is performed.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/llm"
)

// Verdict is the binary outcome of the relevance check.
type Verdict string

const (
	// Relevant routes the question into the retrieval pipeline.
	Relevant Verdict = "RELEVANT"
	// NotRelevant routes the question to the rejection handler.
	NotRelevant Verdict = "NOT_RELEVANT"
)

// ErrUnrecognizedVerdict is returned when the model's structured output is
// not one of the recognized binary values. It is never silently coerced.
var ErrUnrecognizedVerdict = errors.New("unrecognized relevance verdict")

// Classifier grades a question as in-domain or not. The state-machine edge
// logic is a pure function of the returned Verdict, so fakes can drive either
// branch in tests.
type Classifier interface {
	Classify(ctx context.Context, question string) (Verdict, error)
}

const relevancePromptTemplate = `You are a grader assessing the relevance of a user question to the capabilities of a medical chatbot.
Here is the user question:

%s

If the question contains queries about medication or medication-related information such as treatment options, side effects, dosage or interactions, grade it as relevant.
Respond with a JSON object of the form {"binary_score": "yes"} or {"binary_score": "no"} indicating whether the question is relevant to medications.`

// relevanceGrade is the schema the classifier constrains the model to.
type relevanceGrade struct {
	BinaryScore string `json:"binary_score"`
}

// LLMClassifier implements Classifier with a schema-constrained model call.
type LLMClassifier struct {
	generator llm.Generator
	logger    *zap.Logger
}

// NewLLMClassifier creates a classifier backed by the given generator.
func NewLLMClassifier(generator llm.Generator, logger *zap.Logger) (*LLMClassifier, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{generator: generator, logger: logger}, nil
}

// Classify grades the question. Exactly "yes" maps to Relevant and exactly
// "no" maps to NotRelevant; anything else is ErrUnrecognizedVerdict.
func (c *LLMClassifier) Classify(ctx context.Context, question string) (Verdict, error) {
	prompt := fmt.Sprintf(relevancePromptTemplate, question)

	var grade relevanceGrade
	if err := c.generator.CompleteJSON(ctx, prompt, &grade); err != nil {
		return "", fmt.Errorf("grading question relevance: %w", err)
	}

	switch strings.TrimSpace(grade.BinaryScore) {
	case "yes":
		c.logger.Debug("question graded relevant")
		return Relevant, nil
	case "no":
		c.logger.Debug("question graded not relevant")
		return NotRelevant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedVerdict, grade.BinaryScore)
	}
}
