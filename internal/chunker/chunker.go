// Package chunker splits normalized document text into overlapping,
// sentence-aligned chunks with byte offsets into the normalized text.
package chunker

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/normalize"
)

const (
	DefaultChunkSize = 700
	DefaultOverlap   = 100
)

// chunkNamespace scopes the name-based chunk identifiers.
var chunkNamespace = uuid.MustParse("6f1c2a4e-8d3b-4c55-9a2e-3f0b7d51c8a9")

// Span is one chunk of normalized text. Content == normalized[Start:End].
type Span struct {
	Content string
	Start   int
	End     int
}

// Chunker groups sentences into chunks of at most size characters.
// A single sentence longer than size is kept whole.
type Chunker struct {
	size       int
	overlap    int
	normalizer *normalize.Normalizer
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk length in characters.
func WithChunkSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithOverlap sets how many trailing characters of a chunk seed the next one.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Chunker) {
		if n != nil {
			c.normalizer = n
		}
	}
}

// New creates a Chunker. An overlap not smaller than the chunk size is
// reduced to a quarter of the chunk size.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:       DefaultChunkSize,
		overlap:    DefaultOverlap,
		normalizer: normalize.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Normalize exposes the normalizer the chunk offsets are computed against.
func (c *Chunker) Normalize(text string) string { return c.normalizer.Normalize(text) }

// Chunk normalizes text and splits it into spans.
func (c *Chunker) Chunk(text string) []Span {
	return c.split(c.normalizer.Normalize(text))
}

func (c *Chunker) split(text string) []Span {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.size {
		return []Span{{Content: text, Start: 0, End: len(text)}}
	}

	var spans []Span
	start, end := 0, 0
	open := false
	for _, s := range Split(text) {
		if !open {
			start, end, open = s.Start, s.End, true
			continue
		}
		// Sentences are separated by exactly one space in normalized text,
		// so text[start:s.End] is the current chunk plus " " plus s.
		if utf8.RuneCountInString(text[start:s.End]) > c.size {
			spans = append(spans, Span{Content: text[start:end], Start: start, End: end})
			if tail := c.tail(text[start:end]); tail != "" {
				start = end - len(tail)
			} else {
				start = s.Start
			}
		}
		end = s.End
	}
	if open {
		spans = append(spans, Span{Content: text[start:end], Start: start, End: end})
	}
	return spans
}

// tail returns the last overlap characters of s without leading whitespace.
func (c *Chunker) tail(s string) string {
	if c.overlap <= 0 {
		return ""
	}
	i := len(s)
	for n := 0; n < c.overlap && i > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// ChunkDocument chunks the document content and assigns stable identifiers,
// so chunking the same document twice yields identical chunks.
func (c *Chunker) ChunkDocument(doc domain.Document) []domain.Chunk {
	spans := c.Chunk(doc.Content)
	chunks := make([]domain.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = domain.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Content:    s.Content,
			Start:      s.Start,
			End:        s.End,
		}
	}
	return chunks
}

// ChunkID derives the identifier of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+":"+strconv.Itoa(index))).String()
}
