package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMessagesAppend(t *testing.T) {
	state := NewState([]Message{
		{Role: RoleUser, Content: "What is ibuprofen used for?"},
	})

	state.Apply(Delta{Messages: []Message{{Role: RoleAssistant, Content: "rewritten"}}})
	state.Apply(Delta{Messages: []Message{{Role: RoleAssistant, Content: "answer"}}})

	require.Len(t, state.Messages, 3)
	assert.Equal(t, "What is ibuprofen used for?", state.Messages[0].Content)
	assert.Equal(t, "rewritten", state.Messages[1].Content)
	assert.Equal(t, "answer", state.Messages[2].Content)
}

func TestApplyMessagesNeverShrinks(t *testing.T) {
	state := NewState([]Message{{Role: RoleUser, Content: "q"}})

	prev := len(state.Messages)
	for _, d := range []Delta{
		{},
		{Rewritten: &RewrittenQuestion{Text: "q2"}},
		{Messages: []Message{{Role: RoleAssistant, Content: "a"}}},
		{ReplaceDocuments: true},
	} {
		state.Apply(d)
		assert.GreaterOrEqual(t, len(state.Messages), prev)
		prev = len(state.Messages)
	}
}

func TestApplyRewrittenReplace(t *testing.T) {
	state := NewState([]Message{{Role: RoleUser, Content: "q"}})
	assert.Nil(t, state.RewrittenQuestion, "unset until the rewrite stage runs")

	state.Apply(Delta{Rewritten: &RewrittenQuestion{Text: "first", Origin: "q"}})
	state.Apply(Delta{Rewritten: &RewrittenQuestion{Text: "second", Origin: "q"}})

	require.NotNil(t, state.RewrittenQuestion)
	assert.Equal(t, "second", state.RewrittenQuestion.Text)
}

func TestApplyRewrittenNilLeavesValue(t *testing.T) {
	state := NewState([]Message{{Role: RoleUser, Content: "q"}})
	state.Apply(Delta{Rewritten: &RewrittenQuestion{Text: "kept"}})
	state.Apply(Delta{Messages: []Message{{Role: RoleAssistant, Content: "a"}}})

	require.NotNil(t, state.RewrittenQuestion)
	assert.Equal(t, "kept", state.RewrittenQuestion.Text)
}

func TestApplyDocumentsReplace(t *testing.T) {
	state := NewState([]Message{{Role: RoleUser, Content: "q"}})

	state.Apply(Delta{
		Documents:        []Document{{Content: "a"}, {Content: "b"}, {Content: "c"}},
		ReplaceDocuments: true,
	})
	state.Apply(Delta{
		Documents:        []Document{{Content: "b"}},
		ReplaceDocuments: true,
	})

	require.Len(t, state.Documents, 1)
	assert.Equal(t, "b", state.Documents[0].Content)
}

func TestApplyDocumentsReplaceWithEmpty(t *testing.T) {
	state := NewState([]Message{{Role: RoleUser, Content: "q"}})
	state.Apply(Delta{Documents: []Document{{Content: "a"}}, ReplaceDocuments: true})
	state.Apply(Delta{ReplaceDocuments: true})

	assert.Empty(t, state.Documents)
}

func TestLastUserMessage(t *testing.T) {
	state := NewState([]Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	})

	msg, ok := state.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, "second", msg.Content)

	empty := NewState(nil)
	_, ok = empty.LastUserMessage()
	assert.False(t, ok)
}

func TestSourceURL(t *testing.T) {
	doc := Document{
		Content:  "Ibuprofen is a painkiller.",
		Metadata: map[string]interface{}{"url": "https://www.nhs.uk/medicines/ibuprofen/"},
	}
	assert.Equal(t, "https://www.nhs.uk/medicines/ibuprofen/", doc.SourceURL())

	assert.Empty(t, Document{Content: "no metadata"}.SourceURL())
	assert.Empty(t, Document{Metadata: map[string]interface{}{"url": 7}}.SourceURL())
}

func TestNewStateCopiesHistory(t *testing.T) {
	history := []Message{{Role: RoleUser, Content: "q"}}
	state := NewState(history)
	state.Apply(Delta{Messages: []Message{{Role: RoleAssistant, Content: "a"}}})

	assert.Len(t, history, 1, "caller-supplied history must not be mutated")
}
