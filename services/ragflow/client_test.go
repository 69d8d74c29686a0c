package ragflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	return client, server
}

func TestCreateDataset(t *testing.T) {
	var gotBody map[string]interface{}
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/datasets", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]string{"id": "ds-123", "name": "C100"},
		})
	})
	defer server.Close()

	id, err := client.CreateDataset(context.Background(), CreateDatasetRequest{Name: "C100"})
	require.NoError(t, err)
	assert.Equal(t, "ds-123", id)
	assert.Equal(t, "C100", gotBody["name"])
	assert.Equal(t, "naive", gotBody["chunk_method"])
	assert.NotNil(t, gotBody["parser_config"])
}

func TestEnvelopeCodeIsAnErrorEvenOn200(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    102,
			"message": "dataset name already exists",
		})
	})
	defer server.Close()

	_, err := client.CreateDataset(context.Background(), CreateDatasetRequest{Name: "dup"})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 102, apiErr.Code)
	assert.Contains(t, apiErr.Message, "already exists")
}

func TestHTTPErrorStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 401, "message": "bad api key"})
	})
	defer server.Close()

	err := client.HealthCheck(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestUploadDocumentMultipart(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/datasets/ds-1/documents", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "brief.pdf", header.Filename)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": []map[string]string{{"id": "doc-9", "name": "brief.pdf"}},
		})
	})
	defer server.Close()

	id, err := client.UploadDocument(context.Background(), "ds-1", "brief.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "doc-9", id)
}

func TestUploadWithoutIDFails(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "data": []map[string]string{}})
	})
	defer server.Close()

	_, err := client.UploadDocument(context.Background(), "ds-1", "a.txt", []byte("x"))
	assert.Error(t, err)
}

func TestCompleteAnswerKeyFallbacks(t *testing.T) {
	cases := []map[string]interface{}{
		{"answer": "via answer"},
		{"content": "via content"},
		{"choices": []map[string]interface{}{{"message": map[string]string{"content": "via choices"}}}},
	}
	for _, data := range cases {
		client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "data": data})
		})
		completion, err := client.Complete(context.Background(), "chat-1", "sess-1", "q")
		server.Close()
		require.NoError(t, err)
		assert.NotEmpty(t, completion.Answer)
	}
}

func TestRetrieve(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/retrieval", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "negligence", body["question"])
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"data": map[string]interface{}{
				"total": 1,
				"chunks": []map[string]interface{}{
					{"id": "c1", "content": "text", "similarity": 0.8, "document_id": "d1"},
				},
			},
		})
	})
	defer server.Close()

	chunks, total, err := client.Retrieve(context.Background(), RetrievalRequest{
		Question:   "negligence",
		DatasetIDs: []string{"ds-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ID)
}

func TestHostHeaderOverride(t *testing.T) {
	var gotHost string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", HostHeader: "ragflow.internal"})
	require.NoError(t, client.HealthCheck(context.Background()))
	assert.Equal(t, "ragflow.internal", gotHost)
}
