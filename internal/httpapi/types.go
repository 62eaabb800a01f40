package httpapi

import "github.com/willowhealth/medchatd/internal/conversation"

// ChatMessage is one transcript entry on the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput wraps the conversation transcript.
type ChatInput struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatEnvelope is the request and response body for POST /messages. The
// handler mutates it in place: the assistant reply is appended to
// input.messages and one entry is appended to urls (the source URLs of the
// answer's documents, or null when the question was rejected).
type ChatEnvelope struct {
	Input ChatInput  `json:"input"`
	URLs  [][]string `json:"urls"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// toState converts the wire transcript to a conversation state.
func (e *ChatEnvelope) toState() *conversation.State {
	messages := make([]conversation.Message, len(e.Input.Messages))
	for i, m := range e.Input.Messages {
		messages[i] = conversation.Message{
			Role:    conversation.Role(m.Role),
			Content: m.Content,
		}
	}
	return conversation.NewState(messages)
}

// sourceURLs extracts the source URL of each document, keeping document
// order and dropping chunks with no URL.
func sourceURLs(docs []conversation.Document) []string {
	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		if url := doc.SourceURL(); url != "" {
			urls = append(urls, url)
		}
	}
	return urls
}
