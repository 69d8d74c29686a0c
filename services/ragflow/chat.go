package ragflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ChatSettings configures a chat assistant's retrieval and prompting.
type ChatSettings struct {
	ModelName           string
	SystemPrompt        string
	TopN                int
	SimilarityThreshold float64
	ShowCitations       bool
}

type chatAssistant struct {
	ID string `json:"id"`
}

type chatSession struct {
	ID string `json:"id"`
}

func chatBody(name string, datasetIDs []string, s ChatSettings) map[string]interface{} {
	prompt := map[string]interface{}{
		"prompt":               s.SystemPrompt,
		"top_n":                s.TopN,
		"similarity_threshold": s.SimilarityThreshold,
		"quote":                s.ShowCitations,
	}
	body := map[string]interface{}{
		"name":   name,
		"prompt": prompt,
	}
	if datasetIDs != nil {
		body["dataset_ids"] = datasetIDs
	}
	if s.ModelName != "" {
		body["llm"] = map[string]interface{}{"model_name": s.ModelName}
	}
	return body
}

// CreateChat creates a chat assistant bound to the given datasets.
func (c *Client) CreateChat(ctx context.Context, name string, datasetIDs []string, settings ChatSettings) (string, error) {
	var chat chatAssistant
	if err := c.doRequest(ctx, c.longClient, http.MethodPost, "/api/v1/chats", chatBody(name, datasetIDs, settings), &chat); err != nil {
		return "", err
	}
	if chat.ID == "" {
		return "", fmt.Errorf("chat created without an id")
	}
	return chat.ID, nil
}

// UpdateChat pushes new settings to an existing chat assistant.
func (c *Client) UpdateChat(ctx context.Context, chatID, name string, settings ChatSettings) error {
	endpoint := fmt.Sprintf("/api/v1/chats/%s", chatID)
	return c.doRequest(ctx, c.httpClient, http.MethodPut, endpoint, chatBody(name, nil, settings), nil)
}

// DeleteChats removes chat assistants.
func (c *Client) DeleteChats(ctx context.Context, chatIDs []string) error {
	body := map[string]interface{}{"ids": chatIDs}
	return c.doRequest(ctx, c.httpClient, http.MethodDelete, "/api/v1/chats", body, nil)
}

// CreateSession opens a conversation session under a chat assistant.
func (c *Client) CreateSession(ctx context.Context, chatID, name string) (string, error) {
	endpoint := fmt.Sprintf("/api/v1/chats/%s/sessions", chatID)
	body := map[string]interface{}{"name": name}

	var sess chatSession
	if err := c.doRequest(ctx, c.httpClient, http.MethodPost, endpoint, body, &sess); err != nil {
		return "", err
	}
	if sess.ID == "" {
		return "", fmt.Errorf("session created without an id")
	}
	return sess.ID, nil
}

// RenameSession updates a session's display name.
func (c *Client) RenameSession(ctx context.Context, chatID, sessionID, name string) error {
	endpoint := fmt.Sprintf("/api/v1/chats/%s/sessions/%s", chatID, sessionID)
	body := map[string]interface{}{"name": name}
	return c.doRequest(ctx, c.httpClient, http.MethodPut, endpoint, body, nil)
}

// DeleteSessions removes sessions under a chat assistant.
func (c *Client) DeleteSessions(ctx context.Context, chatID string, sessionIDs []string) error {
	endpoint := fmt.Sprintf("/api/v1/chats/%s/sessions", chatID)
	body := map[string]interface{}{"ids": sessionIDs}
	return c.doRequest(ctx, c.httpClient, http.MethodDelete, endpoint, body, nil)
}

// Completion is the assistant's reply to one question. Reference carries the
// citation payload verbatim; its shape varies across RAGFlow versions.
type Completion struct {
	Answer    string
	Reference json.RawMessage
}

// completionData tolerates the answer living under several keys depending on
// the upstream version.
type completionData struct {
	Answer     string          `json:"answer"`
	Content    string          `json:"content"`
	Result     string          `json:"result"`
	Response   string          `json:"response"`
	Text       string          `json:"text"`
	Reference  json.RawMessage `json:"reference"`
	References json.RawMessage `json:"references"`
	Choices    []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (d *completionData) answer() string {
	for _, s := range []string{d.Answer, d.Content, d.Result, d.Response, d.Text} {
		if s != "" {
			return s
		}
	}
	if len(d.Choices) > 0 {
		return d.Choices[0].Message.Content
	}
	return ""
}

// Complete asks the assistant one question within a session and returns the
// answer and its citations.
func (c *Client) Complete(ctx context.Context, chatID, sessionID, question string) (*Completion, error) {
	endpoint := fmt.Sprintf("/api/v1/chats/%s/completions", chatID)
	body := map[string]interface{}{
		"question":   question,
		"session_id": sessionID,
		"stream":     false,
	}

	var data completionData
	if err := c.doRequest(ctx, c.longClient, http.MethodPost, endpoint, body, &data); err != nil {
		return nil, err
	}

	answer := data.answer()
	if answer == "" {
		return nil, fmt.Errorf("completion returned no answer")
	}

	ref := data.Reference
	if len(ref) == 0 {
		ref = data.References
	}
	return &Completion{Answer: answer, Reference: ref}, nil
}
