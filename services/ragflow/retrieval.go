package ragflow

import (
	"context"
	"net/http"
)

// RetrievalRequest queries indexed chunks across datasets.
type RetrievalRequest struct {
	Question            string   `json:"question"`
	DatasetIDs          []string `json:"dataset_ids"`
	TopK                int      `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	Highlight           bool     `json:"highlight,omitempty"`
}

// RetrievedChunk is one scored fragment returned by retrieval.
type RetrievedChunk struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Highlight  string  `json:"highlight,omitempty"`
	Similarity float64 `json:"similarity"`
	DocumentID string  `json:"document_id"`
	DocumentN  string  `json:"document_keyword,omitempty"`
}

type retrievalData struct {
	Chunks []RetrievedChunk `json:"chunks"`
	Total  int              `json:"total"`
}

// Retrieve runs a retrieval query and returns scored chunks with the total
// match count.
func (c *Client) Retrieve(ctx context.Context, req RetrievalRequest) ([]RetrievedChunk, int, error) {
	var data retrievalData
	if err := c.doRequest(ctx, c.longClient, http.MethodPost, "/api/v1/retrieval", req, &data); err != nil {
		return nil, 0, err
	}
	return data.Chunks, data.Total, nil
}
