package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyQuery          = errors.New("query is empty")
	ErrUnsupportedFileType = errors.New("unsupported file type: only .txt files are accepted")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
	ErrInvalidOffsets      = errors.New("invalid chunk offsets")
)

// UnknownFile labels snippets whose document could not be resolved.
const UnknownFile = "Unknown file"

// Document is an uploaded plain-text file.
type Document struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	OriginalName string    `json:"original_name"`
	ByteSize     int64     `json:"byte_size"`
	Content      string    `json:"content,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chunk is a contiguous span of a document's normalized text.
// Start and End are byte offsets into the normalized content.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Embedding  []float32 `json:"-"`
}

// Match is a single vector store hit.
type Match struct {
	ChunkID    string
	DocumentID string
	Content    string
	Start      int
	End        int
	Similarity float32
}

// Snippet is a user-facing view of a matched chunk.
type Snippet struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id,omitempty"`
	File         string  `json:"file"`
	Text         string  `json:"text"`
	Start        int     `json:"start"`
	End          int     `json:"end"`
	Similarity   float64 `json:"similarity"`
	ExpandedText string  `json:"expanded_text,omitempty"`
}

// SearchResult is the output of a search.
type SearchResult struct {
	Query    string    `json:"query"`
	Answer   string    `json:"answer"`
	Snippets []Snippet `json:"snippets"`
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Files  int   `json:"files"`
	Bytes  int64 `json:"bytes"`
	Chunks int   `json:"chunks"`
}
