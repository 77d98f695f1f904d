package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"finrag/internal/domain"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	// MinChunkWords is the floor a window must exceed to be emitted.
	MinChunkWords = 20
)

var (
	// Letters and digits from any script survive; Unicode spaces such as
	// U+00A0 are kept here and collapsed below.
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}\x{85}.,;:!?\-%$/]`)
	whitespaceRun   = regexp.MustCompile(`[\s\p{Z}\x{85}]+`)
)

// WordChunker splits text into overlapping windows of whitespace-separated words.
type WordChunker struct {
	size    int
	overlap int
}

// NewWordChunker returns a chunker emitting windows of size words that
// share overlap words with their predecessor.
func NewWordChunker(size, overlap int) (*WordChunker, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap %d is negative", domain.ErrValidation, overlap)
	}
	if size <= overlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d", domain.ErrValidation, size, overlap)
	}
	return &WordChunker{size: size, overlap: overlap}, nil
}

func (c *WordChunker) Size() int    { return c.size }
func (c *WordChunker) Overlap() int { return c.overlap }

// Clean drops characters outside the allowed set, collapses whitespace runs
// to a single space and trims the ends.
func (c *WordChunker) Clean(text string) string {
	return Clean(text)
}

// Clean is the package-level form of WordChunker.Clean.
func Clean(text string) string {
	text = disallowedChars.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunk splits text into windows. Windows of MinChunkWords words or fewer
// are dropped, so short input yields no chunks at all.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]
		if len(window) > MinChunkWords {
			chunks = append(chunks, strings.Join(window, " "))
		}
	}
	return chunks
}
