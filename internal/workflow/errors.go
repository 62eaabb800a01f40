package workflow

import "errors"

// Error taxonomy for workflow failures. Any stage failure aborts the whole
// run; there is no retry between stages and no fallback transition.
var (
	// ErrInvalidInput indicates malformed or missing input; the workflow
	// never starts.
	ErrInvalidInput = errors.New("invalid workflow input")

	// ErrClassification indicates the relevance gate failed or produced an
	// unrecognized verdict.
	ErrClassification = errors.New("relevance classification failed")

	// ErrRetrieval indicates a retrieval or ranking failure.
	ErrRetrieval = errors.New("document retrieval failed")

	// ErrGeneration indicates a generation call failed (rewrite, reject or
	// synthesize).
	ErrGeneration = errors.New("answer generation failed")
)
