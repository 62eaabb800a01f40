// Package conversation defines the shared state record threaded through every
// stage of the question-answering workflow, along with the per-field merge
// policies the orchestrator applies after each stage.
package conversation

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message authored by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Document is a retrieved corpus chunk with its source metadata.
//
// Metadata carries at minimum a source identifier ("url") plus the domain
// attributes "med_name", "document_description" and "page_description".
// Document identity for deduplication is the exact content text, not an ID.
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SourceURL returns the document's source URL, or "" when absent.
func (d Document) SourceURL() string {
	if d.Metadata == nil {
		return ""
	}
	if url, ok := d.Metadata["url"].(string); ok {
		return url
	}
	return ""
}

// RewrittenQuestion is the retrieval-optimized form of the user's question.
// Origin records the user message content the rewrite was derived from.
type RewrittenQuestion struct {
	Text   string `json:"text"`
	Origin string `json:"origin"`
}

// State is the conversation state for one request. It is created fresh per
// incoming request, mutated stage-by-stage by the orchestrator, and discarded
// once the final response is emitted. It is never shared across requests, so
// no locking is required.
type State struct {
	// Messages is the transcript. Append-only: its length is monotonically
	// non-decreasing within one request's processing.
	Messages []Message

	// RewrittenQuestion is replaced wholesale by the rewrite stage and is nil
	// until that stage runs (it stays nil on the rejection path).
	RewrittenQuestion *RewrittenQuestion

	// Documents reflects only the most recent retrieval or ranking stage's
	// output. Each stage that emits documents replaces the whole slice.
	Documents []Document
}

// NewState creates a State from the caller-supplied message history.
func NewState(messages []Message) *State {
	msgs := make([]Message, len(messages))
	copy(msgs, messages)
	return &State{Messages: msgs}
}

// LastUserMessage returns the most recent user-authored message.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastMessage returns the final transcript entry.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
