package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/willowhealth/medchatd/internal/answer"
	"github.com/willowhealth/medchatd/internal/conversation"
	"github.com/willowhealth/medchatd/internal/gate"
	"github.com/willowhealth/medchatd/internal/rerank"
	"github.com/willowhealth/medchatd/internal/workflow"
)

// Scripted workflow collaborators. The classifier accepts anything except
// questions mentioning the weather.

type scriptedClassifier struct{}

func (scriptedClassifier) Classify(ctx context.Context, question string) (gate.Verdict, error) {
	if strings.Contains(question, "weather") {
		return gate.NotRelevant, nil
	}
	return gate.Relevant, nil
}

type scriptedRewriter struct{}

func (scriptedRewriter) Rewrite(ctx context.Context, question string) (string, error) {
	return "rewritten: " + question, nil
}

type scriptedRetriever struct {
	docs []conversation.Document
	err  error
}

func (r *scriptedRetriever) Retrieve(ctx context.Context, question string) ([]conversation.Document, error) {
	return r.docs, r.err
}

type scriptedSynthesizer struct{}

func (scriptedSynthesizer) Synthesize(ctx context.Context, question string, docs []conversation.Document) (string, error) {
	return "Paracetamol is used to treat pain.", nil
}

type scriptedRejecter struct{}

func (scriptedRejecter) Reject(ctx context.Context, question string) (string, error) {
	return "I can only answer questions about NHS medications. See " + answer.NHSMedicinesURL, nil
}

func newTestServer(t *testing.T, retriever *scriptedRetriever) *Server {
	t.Helper()

	orch, err := workflow.New(workflow.Config{},
		scriptedClassifier{},
		scriptedRewriter{},
		retriever,
		rerank.NewLexical(zap.NewNop()),
		scriptedSynthesizer{},
		scriptedRejecter{},
		zap.NewNop(),
	)
	require.NoError(t, err)

	srv, err := NewServer(orch, NewMetrics(prometheus.NewRegistry()), zap.NewNop(), Config{})
	require.NoError(t, err)
	return srv
}

func postMessages(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/messages", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func medicationDocs() []conversation.Document {
	return []conversation.Document{
		{Content: "Paracetamol treats aches and pain.", Metadata: map[string]interface{}{"url": "https://www.nhs.uk/medicines/paracetamol-for-adults/about/"}},
		{Content: "The usual dose is one or two 500mg tablets.", Metadata: map[string]interface{}{"url": "https://www.nhs.uk/medicines/paracetamol-for-adults/dosage/"}},
	}
}

func TestMessagesAnswersInDomainQuestion(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{docs: medicationDocs()})

	rec := postMessages(t, srv, `{"input":{"messages":[{"role":"user","content":"What is paracetamol used for?"}]},"urls":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope ChatEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	// The assistant reply is appended to the transcript.
	require.Len(t, envelope.Input.Messages, 2)
	assert.Equal(t, "user", envelope.Input.Messages[0].Role)
	assert.Equal(t, "assistant", envelope.Input.Messages[1].Role)
	assert.Equal(t, "Paracetamol is used to treat pain.", envelope.Input.Messages[1].Content)

	// One urls entry is appended with the answer's source URLs.
	require.Len(t, envelope.URLs, 1)
	require.NotNil(t, envelope.URLs[0])
	assert.LessOrEqual(t, len(envelope.URLs[0]), rerank.DefaultTopN)
	for _, url := range envelope.URLs[0] {
		assert.Contains(t, url, "https://www.nhs.uk/medicines/")
	}
}

func TestMessagesRejectsOutOfDomainQuestion(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{})

	rec := postMessages(t, srv, `{"input":{"messages":[{"role":"user","content":"What's the weather today?"}]},"urls":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The urls entry for a refusal is a JSON null.
	assert.Contains(t, rec.Body.String(), `"urls":[null]`)

	var envelope ChatEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	require.Len(t, envelope.Input.Messages, 2)
	assert.Contains(t, envelope.Input.Messages[1].Content, answer.NHSMedicinesURL)
	require.Len(t, envelope.URLs, 1)
	assert.Nil(t, envelope.URLs[0])
}

func TestMessagesPreservesExistingHistory(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{docs: medicationDocs()})

	rec := postMessages(t, srv, `{"input":{"messages":[{"role":"user","content":"What's the weather today?"},{"role":"assistant","content":"I can only answer medication questions."},{"role":"user","content":"What is paracetamol used for?"}]},"urls":[null]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope ChatEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	// Prior turns are untouched; the new reply is appended.
	require.Len(t, envelope.Input.Messages, 4)
	assert.Equal(t, "What's the weather today?", envelope.Input.Messages[0].Content)
	require.Len(t, envelope.URLs, 2)
	assert.Nil(t, envelope.URLs[0])
	assert.NotNil(t, envelope.URLs[1])
}

func TestMessagesRejectsInvalidInput(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"input":`},
		{"no messages", `{"input":{"messages":[]},"urls":[]}`},
		{"no user message", `{"input":{"messages":[{"role":"assistant","content":"hi"}]},"urls":[]}`},
		{"empty content", `{"input":{"messages":[{"role":"user","content":""}]},"urls":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMessages(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMessagesStageFailureReturnsBadGateway(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{err: errors.New("index offline")})

	rec := postMessages(t, srv, `{"input":{"messages":[{"role":"user","content":"What is paracetamol used for?"}]},"urls":[]}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	// No partial transcript leaks into the error response.
	assert.NotContains(t, rec.Body.String(), "rewritten:")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &scriptedRetriever{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
