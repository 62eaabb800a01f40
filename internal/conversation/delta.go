package conversation

// MergePolicy describes how a stage's output for one state field is folded
// into the shared state.
type MergePolicy string

const (
	// MergeAppend adds the stage's values to the end of the existing sequence.
	MergeAppend MergePolicy = "append"
	// MergeReplace overwrites the previous value wholesale.
	MergeReplace MergePolicy = "replace"
)

// FieldPolicies is the per-field merge-policy table. The orchestrator applies
// it mechanically after every stage; no stage mutates the state directly.
var FieldPolicies = map[string]MergePolicy{
	"messages":           MergeAppend,
	"rewritten_question": MergeReplace,
	"documents":          MergeReplace,
}

// Delta is one stage's output against the conversation state. Zero-value
// fields leave the corresponding state field untouched.
type Delta struct {
	// Messages are appended to the transcript.
	Messages []Message

	// Rewritten replaces the rewritten question when non-nil.
	Rewritten *RewrittenQuestion

	// Documents replaces the document set when ReplaceDocuments is true.
	// The flag distinguishes "replace with empty" from "no document output".
	Documents        []Document
	ReplaceDocuments bool
}

// Apply folds a stage delta into the state using the field merge policies.
func (s *State) Apply(d Delta) {
	s.Messages = append(s.Messages, d.Messages...)
	if d.Rewritten != nil {
		s.RewrittenQuestion = d.Rewritten
	}
	if d.ReplaceDocuments {
		s.Documents = d.Documents
	}
}
