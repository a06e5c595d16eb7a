package domain

import "context"

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists chunk vectors and answers similarity queries.
// Search returns matches ordered by descending similarity, all at or above
// threshold, at most count of them.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, vector []float32, threshold float32, count int) ([]Match, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Close() error
}

// DocumentStore persists documents and their chunks.
// Deleting a document removes its chunks as well; deleting a missing
// document is not an error.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) error
	// SaveChunks replaces the chunk set of a document and updates its chunk count.
	SaveChunks(ctx context.Context, documentID string, chunks []Chunk) error
	GetDocument(ctx context.Context, id string) (Document, error)
	// GetDocuments returns the documents that exist among ids, in no particular order.
	GetDocuments(ctx context.Context, ids []string) ([]Document, error)
	GetChunk(ctx context.Context, id string) (Chunk, error)
	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
	Close() error
}

// LLM answers a query using only the supplied snippets.
type LLM interface {
	Summarize(ctx context.Context, query string, snippets []string) (string, error)
}
