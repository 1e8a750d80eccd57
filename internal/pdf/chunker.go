package pdf

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DefaultChunkSize is the number of pages submitted to the extraction
// service per request
const DefaultChunkSize = 10

// Chunker 将文档划分为固定页数的连续区间
type Chunker struct {
	chunkSize int
}

// NewChunker creates a chunker; size <= 0 selects the default
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{chunkSize: size}
}

// Split 返回文档的分块与总页数
func (c *Chunker) Split(pdfPath string) ([]Chunk, int, error) {
	totalPages, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, 0, NewPDFError(ErrPDFInvalid, "failed to read page count", err)
	}
	if totalPages == 0 {
		return nil, 0, NewPDFError(ErrPDFInvalid, "document has no pages", nil)
	}
	return makeChunks(totalPages, c.chunkSize), totalPages, nil
}

// makeChunks computes inclusive 1-based page ranges
func makeChunks(totalPages, size int) []Chunk {
	var chunks []Chunk
	for start := 1; start <= totalPages; start += size {
		end := min(start+size-1, totalPages)
		chunks = append(chunks, Chunk{
			ID:        len(chunks),
			StartPage: start,
			EndPage:   end,
		})
	}
	return chunks
}
