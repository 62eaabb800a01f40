package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/conversation"
)

type fakeGenerator struct {
	response string
	err      error
	prompt   string
}

func (g *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.response, g.err
}

func (g *fakeGenerator) CompleteJSON(ctx context.Context, prompt string, out interface{}) error {
	return errors.New("not used")
}

func TestContextBlock(t *testing.T) {
	docs := []conversation.Document{
		{Content: "first chunk"},
		{Content: "second chunk"},
		{Content: "third chunk"},
	}
	assert.Equal(t, "first chunk\n\nsecond chunk\n\nthird chunk", ContextBlock(docs))
	assert.Empty(t, ContextBlock(nil))
}

func TestSynthesizePromptCarriesQuestionAndContext(t *testing.T) {
	gen := &fakeGenerator{response: "Ibuprofen is used to treat pain and inflammation."}
	syn, err := NewSynthesizer(gen, zap.NewNop())
	require.NoError(t, err)

	docs := []conversation.Document{
		{Content: "Ibuprofen is an NSAID used for pain relief."},
		{Content: "Common side effects include indigestion."},
	}
	got, err := syn.Synthesize(context.Background(), "What is ibuprofen used for?", docs)
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen is used to treat pain and inflammation.", got)

	assert.True(t, strings.Contains(gen.prompt, "What is ibuprofen used for?"))
	assert.True(t, strings.Contains(gen.prompt, "Ibuprofen is an NSAID used for pain relief.\n\nCommon side effects include indigestion."),
		"documents must appear in ranked order separated by a blank line")
	assert.True(t, strings.Contains(gen.prompt, `"on the NHS website"`))
}

func TestSynthesizeWithEmptyDocuments(t *testing.T) {
	gen := &fakeGenerator{response: "I am unable to find any specific information from the NHS Medicines website."}
	syn, err := NewSynthesizer(gen, zap.NewNop())
	require.NoError(t, err)

	got, err := syn.Synthesize(context.Background(), "question", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestSynthesizePropagatesError(t *testing.T) {
	genErr := errors.New("provider unavailable")
	syn, err := NewSynthesizer(&fakeGenerator{err: genErr}, zap.NewNop())
	require.NoError(t, err)

	_, err = syn.Synthesize(context.Background(), "q", nil)
	require.ErrorIs(t, err, genErr)
}

func TestRejectPromptIncludesLinkAndSignposting(t *testing.T) {
	gen := &fakeGenerator{response: "I can only answer medication questions. See " + NHSMedicinesURL}
	rej, err := NewRejecter(gen, zap.NewNop())
	require.NoError(t, err)

	got, err := rej.Reject(context.Background(), "What's the weather today?")
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, NHSMedicinesURL))

	assert.True(t, strings.Contains(gen.prompt, "What's the weather today?"))
	assert.True(t, strings.Contains(gen.prompt, NHSMedicinesURL))
	assert.True(t, strings.Contains(gen.prompt, "111"))
	assert.True(t, strings.Contains(gen.prompt, "999"))
}

func TestRejectPropagatesError(t *testing.T) {
	genErr := errors.New("provider unavailable")
	rej, err := NewRejecter(&fakeGenerator{err: genErr}, zap.NewNop())
	require.NoError(t, err)

	_, err = rej.Reject(context.Background(), "q")
	require.ErrorIs(t, err, genErr)
}
