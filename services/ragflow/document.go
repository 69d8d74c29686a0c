package ragflow

import (
	"context"
	"fmt"
	"net/http"
)

// RemoteDocument is a document registered in a RAGFlow dataset.
type RemoteDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Run  string `json:"run,omitempty"`
}

// UploadDocument pushes file content into a dataset and returns the remote
// document id.
func (c *Client) UploadDocument(ctx context.Context, datasetID, filename string, content []byte) (string, error) {
	endpoint := fmt.Sprintf("/api/v1/datasets/%s/documents", datasetID)

	// RAGFlow returns the created documents as a list
	var docs []RemoteDocument
	if err := c.doUpload(ctx, endpoint, filename, content, &docs); err != nil {
		return "", err
	}
	if len(docs) == 0 || docs[0].ID == "" {
		return "", fmt.Errorf("document uploaded without an id")
	}
	return docs[0].ID, nil
}

// ParseDocuments triggers chunking and embedding for the given documents.
func (c *Client) ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	endpoint := fmt.Sprintf("/api/v1/datasets/%s/chunks", datasetID)
	body := map[string]interface{}{"document_ids": documentIDs}
	return c.doRequest(ctx, c.longClient, http.MethodPost, endpoint, body, nil)
}

// RenameDocument updates the display name of a remote document.
func (c *Client) RenameDocument(ctx context.Context, datasetID, documentID, name string) error {
	endpoint := fmt.Sprintf("/api/v1/datasets/%s/documents/%s", datasetID, documentID)
	body := map[string]interface{}{"name": name}
	return c.doRequest(ctx, c.httpClient, http.MethodPut, endpoint, body, nil)
}

// DeleteDocuments removes documents from a dataset.
func (c *Client) DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error {
	endpoint := fmt.Sprintf("/api/v1/datasets/%s/documents", datasetID)
	body := map[string]interface{}{"ids": documentIDs}
	return c.doRequest(ctx, c.httpClient, http.MethodDelete, endpoint, body, nil)
}

// Chunk is one indexed fragment of a document.
type Chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// chunkPage tolerates the several list keys RAGFlow versions have used.
type chunkPage struct {
	Chunks []Chunk `json:"chunks"`
	Items  []Chunk `json:"items"`
	List   []Chunk `json:"list"`
}

// ListChunks fetches a page of chunks for a document.
func (c *Client) ListChunks(ctx context.Context, datasetID, documentID string, page, pageSize int) ([]Chunk, error) {
	endpoint := fmt.Sprintf("/api/v1/datasets/%s/documents/%s/chunks?page=%d&page_size=%d",
		datasetID, documentID, page, pageSize)

	var result chunkPage
	if err := c.doRequest(ctx, c.httpClient, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	switch {
	case len(result.Chunks) > 0:
		return result.Chunks, nil
	case len(result.Items) > 0:
		return result.Items, nil
	default:
		return result.List, nil
	}
}
