// Package ragflow is a client for the RAGFlow HTTP API. The application
// delegates all indexing, retrieval and chat completion to RAGFlow; this
// package only moves data and never interprets retrieval results.
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the HTTP client timeout for metadata calls
	DefaultTimeout = 30 * time.Second
	// DefaultLongTimeout covers uploads, parsing and chat completions,
	// which can block on model inference upstream
	DefaultLongTimeout = 60 * time.Second
)

// Client handles all RAGFlow API interactions
type Client struct {
	apiKey     string
	baseURL    string
	hostHeader string
	httpClient *http.Client // metadata calls
	longClient *http.Client // uploads, parsing, completions
}

// Config holds configuration for the RAGFlow client
type Config struct {
	BaseURL     string
	APIKey      string
	HostHeader  string // optional Host override when RAGFlow sits behind a proxy
	Timeout     time.Duration
	LongTimeout time.Duration
}

// NewClient creates a new RAGFlow API client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.LongTimeout == 0 {
		config.LongTimeout = DefaultLongTimeout
	}

	return &Client{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		hostHeader: config.HostHeader,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		longClient: &http.Client{
			Timeout: config.LongTimeout,
		},
	}
}

// APIError represents a RAGFlow API error response
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("RAGFlow API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// envelope is the standard RAGFlow response wrapper. A non-zero code means
// failure even on HTTP 200.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest performs a JSON request and unmarshals the data payload into
// result when provided.
func (c *Client) doRequest(ctx context.Context, client *http.Client, method, endpoint string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.hostHeader != "" {
		req.Host = c.hostHeader
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.decodeEnvelope(resp, result)
}

// doUpload performs a multipart file upload under the form field "file".
func (c *Client) doUpload(ctx context.Context, endpoint, filename string, content []byte, result interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.hostHeader != "" {
		req.Host = c.hostHeader
	}

	resp, err := c.longClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.decodeEnvelope(resp, result)
}

func (c *Client) decodeEnvelope(resp *http.Response, result interface{}) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Code != 0 {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// HealthCheck verifies the client can reach the RAGFlow API
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.doRequest(ctx, c.httpClient, http.MethodGet, "/api/v1/datasets?page=1&page_size=1", nil, nil)
}
