package workflow

import (
	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/gate"
)

// Stage names the workflow states that emit deltas.
type Stage string

const (
	// StageRelevanceCheck is the binary in-domain gate.
	StageRelevanceCheck Stage = "relevance_check"
	// StageRewrite produces the retrieval-optimized question.
	StageRewrite Stage = "rewrite"
	// StageRetrieve runs the fused retrieval strategies.
	StageRetrieve Stage = "retrieve"
	// StageRank reranks and truncates the retrieved set.
	StageRank Stage = "rank"
	// StageGenerate synthesizes the grounded answer.
	StageGenerate Stage = "generate"
	// StageReject produces the scoped refusal.
	StageReject Stage = "reject"
)

// maxDeltas is the longest possible delta sequence (the accept path).
const maxDeltas = 5

// Delta is one stage's contribution to the run: the stage name, the state
// delta it produced (already applied by the orchestrator) and, for the
// relevance check, the gate verdict.
type Delta struct {
	Stage   Stage
	Verdict gate.Verdict
	conversation.Delta
}

// Execution is one in-flight workflow run. Its delta sequence is finite,
// ordered, single-consumer and non-restartable. The channel is buffered for
// the longest possible run, so a caller that only wants the final state can
// skip Deltas and call Wait directly.
type Execution struct {
	deltas chan Delta
	done   chan struct{}

	// written only by the run goroutine, read after done is closed
	final *conversation.State
	err   error
}

func newExecution() *Execution {
	return &Execution{
		deltas: make(chan Delta, maxDeltas),
		done:   make(chan struct{}),
	}
}

// Deltas returns the stage delta stream. It is closed when the run finishes,
// whether by completion or by failure.
func (e *Execution) Deltas() <-chan Delta {
	return e.deltas
}

// Wait blocks until the run finishes and returns the final conversation
// state, or the error that aborted the run.
func (e *Execution) Wait() (*conversation.State, error) {
	<-e.done
	return e.final, e.err
}

func (e *Execution) finish(final *conversation.State, err error) {
	e.final = final
	e.err = err
	close(e.deltas)
	close(e.done)
}
