package domain

import "errors"

var (
	// ErrValidation indicates caller input that can never succeed,
	// such as mismatched slice lengths or an impossible chunker config.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedRecord indicates a raw record missing a required field.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGeneratorUnavailable indicates the text generator is not configured.
	ErrGeneratorUnavailable = errors.New("text generator unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
