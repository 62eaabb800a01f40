// Package workflow implements the conversational state machine that answers
// medication questions:
//
//	ENTRY -> RELEVANCE_CHECK -> {REWRITE -> RETRIEVE -> RANK -> GENERATE} | REJECT -> DONE
//
// Each transition applies exactly one stage's output to the conversation
// state using the per-field merge policies before evaluating the next edge.
// A stage failure aborts the run; there is no retry and no fallback.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/gate"
	"github.com/willowhealth/medchatd/internal/rerank"
)

var workflowTracer = otel.Tracer("medchatd.workflow")

// Rewriter produces the retrieval-optimized question.
type Rewriter interface {
	Rewrite(ctx context.Context, question string) (string, error)
}

// Retriever returns the fused, deduplicated candidate documents.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]conversation.Document, error)
}

// Synthesizer produces the grounded answer from the ranked documents.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, docs []conversation.Document) (string, error)
}

// Rejecter produces the scoped refusal.
type Rejecter interface {
	Reject(ctx context.Context, question string) (string, error)
}

// Config holds orchestrator configuration.
type Config struct {
	// RerankTopN is the size of the final document set. Defaults to
	// rerank.DefaultTopN.
	RerankTopN int
}

// Orchestrator sequences the stages over a per-request conversation state.
// All collaborators are constructed once at process start and shared across
// concurrent requests; the orchestrator itself holds no per-request state.
type Orchestrator struct {
	classifier  gate.Classifier
	rewriter    Rewriter
	retriever   Retriever
	reranker    rerank.Reranker
	synthesizer Synthesizer
	rejecter    Rejecter
	topN        int
	logger      *zap.Logger
}

// New creates an Orchestrator. Every collaborator is required.
func New(
	cfg Config,
	classifier gate.Classifier,
	rewriter Rewriter,
	retriever Retriever,
	reranker rerank.Reranker,
	synthesizer Synthesizer,
	rejecter Rejecter,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if rewriter == nil {
		return nil, fmt.Errorf("rewriter is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if reranker == nil {
		return nil, fmt.Errorf("reranker is required")
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if rejecter == nil {
		return nil, fmt.Errorf("rejecter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	topN := cfg.RerankTopN
	if topN <= 0 {
		topN = rerank.DefaultTopN
	}
	return &Orchestrator{
		classifier:  classifier,
		rewriter:    rewriter,
		retriever:   retriever,
		reranker:    reranker,
		synthesizer: synthesizer,
		rejecter:    rejecter,
		topN:        topN,
		logger:      logger,
	}, nil
}

// Start validates the input and launches the run, returning the Execution
// whose delta stream the caller may consume. Invalid input is reported
// immediately and no Execution is created.
func (o *Orchestrator) Start(ctx context.Context, state *conversation.State) (*Execution, error) {
	if err := validateInput(state); err != nil {
		return nil, err
	}
	ex := newExecution()
	go o.run(ctx, ex, state)
	return ex, nil
}

// Run executes the workflow to completion and returns only the final state.
// It shares the stage logic with Start; the delta stream is simply drained.
func (o *Orchestrator) Run(ctx context.Context, state *conversation.State) (*conversation.State, error) {
	ex, err := o.Start(ctx, state)
	if err != nil {
		return nil, err
	}
	for range ex.Deltas() {
	}
	return ex.Wait()
}

func validateInput(state *conversation.State) error {
	if state == nil || len(state.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidInput)
	}
	msg, ok := state.LastUserMessage()
	if !ok {
		return fmt.Errorf("%w: no user message", ErrInvalidInput)
	}
	if msg.Content == "" {
		return fmt.Errorf("%w: empty user message", ErrInvalidInput)
	}
	return nil
}

// run drives the state machine. It owns the state for the duration of the
// run and is the only writer to it.
func (o *Orchestrator) run(ctx context.Context, ex *Execution, state *conversation.State) {
	ctx, span := workflowTracer.Start(ctx, "Orchestrator.run")
	defer span.End()

	start := time.Now()

	emit := func(d Delta) {
		state.Apply(d.Delta)
		ex.deltas <- d
	}
	fail := func(stage Stage, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("workflow stage failed",
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		ex.finish(nil, err)
	}

	question, _ := state.LastUserMessage()

	// RELEVANCE_CHECK
	verdict, err := o.classifier.Classify(ctx, question.Content)
	if err != nil {
		fail(StageRelevanceCheck, fmt.Errorf("%w: %v", ErrClassification, err))
		return
	}
	span.SetAttributes(attribute.String("verdict", string(verdict)))
	o.logger.Debug("relevance check complete", zap.String("verdict", string(verdict)))
	emit(Delta{Stage: StageRelevanceCheck, Verdict: verdict})

	if verdict == gate.NotRelevant {
		// REJECT
		rejectInput := question.Content
		if state.RewrittenQuestion != nil {
			rejectInput = state.RewrittenQuestion.Text
		}
		refusal, err := o.rejecter.Reject(ctx, rejectInput)
		if err != nil {
			fail(StageReject, fmt.Errorf("%w: %v", ErrGeneration, err))
			return
		}
		emit(Delta{Stage: StageReject, Delta: conversation.Delta{
			Messages: []conversation.Message{{Role: conversation.RoleAssistant, Content: refusal}},
		}})
		o.logger.Info("workflow rejected question", zap.Duration("duration", time.Since(start)))
		ex.finish(state, nil)
		return
	}

	// REWRITE. The rewritten query replaces the rewritten-question value and
	// is also appended to the visible transcript.
	rewritten, err := o.rewriter.Rewrite(ctx, question.Content)
	if err != nil {
		fail(StageRewrite, fmt.Errorf("%w: %v", ErrGeneration, err))
		return
	}
	emit(Delta{Stage: StageRewrite, Delta: conversation.Delta{
		Messages:  []conversation.Message{{Role: conversation.RoleAssistant, Content: rewritten}},
		Rewritten: &conversation.RewrittenQuestion{Text: rewritten, Origin: question.Content},
	}})

	// RETRIEVE
	docs, err := o.retriever.Retrieve(ctx, rewritten)
	if err != nil {
		fail(StageRetrieve, fmt.Errorf("%w: %v", ErrRetrieval, err))
		return
	}
	emit(Delta{Stage: StageRetrieve, Delta: conversation.Delta{
		Documents:        docs,
		ReplaceDocuments: true,
	}})

	// RANK
	ranked, err := o.reranker.Rerank(ctx, rewritten, docs, o.topN)
	if err != nil {
		fail(StageRank, fmt.Errorf("%w: %v", ErrRetrieval, err))
		return
	}
	emit(Delta{Stage: StageRank, Delta: conversation.Delta{
		Documents:        ranked,
		ReplaceDocuments: true,
	}})

	// GENERATE
	answer, err := o.synthesizer.Synthesize(ctx, rewritten, ranked)
	if err != nil {
		fail(StageGenerate, fmt.Errorf("%w: %v", ErrGeneration, err))
		return
	}
	emit(Delta{Stage: StageGenerate, Delta: conversation.Delta{
		Messages: []conversation.Message{{Role: conversation.RoleAssistant, Content: answer}},
	}})

	span.SetStatus(codes.Ok, "")
	o.logger.Info("workflow answered question",
		zap.Int("documents", len(ranked)),
		zap.Duration("duration", time.Since(start)),
	)
	ex.finish(state, nil)
}
