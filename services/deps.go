package services

import (
	"context"
	"encoding/json"

	"github.com/casehub/casehub/model"
	"github.com/casehub/casehub/services/ragflow"
)

// Actor is the verified identity behind a request: a role tag plus the row
// in that role's account table.
type Actor struct {
	Role model.Role
	ID   int64
	Name string
}

// ObjectStore is the slice of the storage client the services need. The
// concrete implementation is services/storage.Client.
type ObjectStore interface {
	PendingBucket() string
	KnowledgeBucket() string
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Remove(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, dstBucket, key string) error
}

// RAG is the slice of the RAGFlow client the services need.
type RAG interface {
	CreateDataset(ctx context.Context, req ragflow.CreateDatasetRequest) (string, error)
	UploadDocument(ctx context.Context, datasetID, filename string, content []byte) (string, error)
	ParseDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	RenameDocument(ctx context.Context, datasetID, documentID, name string) error
	DeleteDocuments(ctx context.Context, datasetID string, documentIDs []string) error
	ListChunks(ctx context.Context, datasetID, documentID string, page, pageSize int) ([]ragflow.Chunk, error)
	Retrieve(ctx context.Context, req ragflow.RetrievalRequest) ([]ragflow.RetrievedChunk, int, error)
	CreateChat(ctx context.Context, name string, datasetIDs []string, settings ragflow.ChatSettings) (string, error)
	UpdateChat(ctx context.Context, chatID, name string, settings ragflow.ChatSettings) error
	DeleteChats(ctx context.Context, chatIDs []string) error
	CreateSession(ctx context.Context, chatID, name string) (string, error)
	RenameSession(ctx context.Context, chatID, sessionID, name string) error
	DeleteSessions(ctx context.Context, chatID string, sessionIDs []string) error
	Complete(ctx context.Context, chatID, sessionID, question string) (*ragflow.Completion, error)
}

// RawJSON re-exports the JSON type used for citation payloads so handlers do
// not need to import encoding/json just to pass references through.
type RawJSON = json.RawMessage
