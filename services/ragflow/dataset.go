package ragflow

import (
	"context"
	"fmt"
	"net/http"
)

// Dataset is the RAGFlow-side index backing one knowledge base.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ChunkMethod string `json:"chunk_method,omitempty"`
}

// CreateDatasetRequest creates a new dataset. EmbeddingModel may be empty to
// use the server default.
type CreateDatasetRequest struct {
	Name           string                 `json:"name"`
	EmbeddingModel string                 `json:"embedding_model,omitempty"`
	ChunkMethod    string                 `json:"chunk_method,omitempty"`
	ParserConfig   map[string]interface{} `json:"parser_config"`
	Permission     string                 `json:"permission,omitempty"`
}

// CreateDataset creates a dataset and returns its id.
func (c *Client) CreateDataset(ctx context.Context, req CreateDatasetRequest) (string, error) {
	if req.ChunkMethod == "" {
		req.ChunkMethod = "naive"
	}
	if req.ParserConfig == nil {
		req.ParserConfig = map[string]interface{}{}
	}
	if req.Permission == "" {
		req.Permission = "me"
	}

	var ds Dataset
	if err := c.doRequest(ctx, c.httpClient, http.MethodPost, "/api/v1/datasets", req, &ds); err != nil {
		return "", err
	}
	if ds.ID == "" {
		return "", fmt.Errorf("dataset created without an id")
	}
	return ds.ID, nil
}
