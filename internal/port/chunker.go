package port

// Chunker splits cleaned text into bounded word windows.
type Chunker interface {
	Clean(text string) string
	Chunk(text string) []string
}
