package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"finrag/internal/domain"
	"finrag/internal/logger"
	"finrag/internal/port"
)

// ProcessUseCase turns raw entity records into chunk records.
type ProcessUseCase struct {
	chunker port.Chunker
}

// NewProcessUseCase creates a new process use case.
func NewProcessUseCase(chunker port.Chunker) *ProcessUseCase {
	return &ProcessUseCase{chunker: chunker}
}

// ProcessResult contains the results of processing a batch of entities.
type ProcessResult struct {
	Chunks          []domain.ChunkRecord
	EntitiesSkipped int
	Errors          []error
}

// Process chunks every document of one entity. The first invalid document
// fails the whole entity.
func (u *ProcessUseCase) Process(record domain.RawEntityRecord) ([]domain.ChunkRecord, error) {
	if err := validateRecord(record); err != nil {
		return nil, err
	}

	meta := domain.ChunkMetadata{
		Sector:    record.Sector,
		Industry:  record.Industry,
		MarketCap: record.MarketCap,
		PERatio:   record.PERatio,
	}

	var chunks []domain.ChunkRecord
	for _, doc := range record.Documents {
		cleaned := u.chunker.Clean(doc.Content)
		for i, text := range u.chunker.Chunk(cleaned) {
			chunks = append(chunks, domain.ChunkRecord{
				Text:        text,
				Ticker:      record.Ticker,
				CompanyName: record.CompanyName,
				Type:        doc.Type,
				ChunkID:     i,
				Date:        doc.Date,
				Metadata:    meta,
			})
		}
	}
	return chunks, nil
}

// ProcessAll processes records in order. Entities that fail validation are
// skipped and reported in the result.
func (u *ProcessUseCase) ProcessAll(records []domain.RawEntityRecord) *ProcessResult {
	result := &ProcessResult{Chunks: []domain.ChunkRecord{}}
	for _, record := range records {
		chunks, err := u.Process(record)
		if err != nil {
			logger.Warn("skipping %s: %v", record.Ticker, err)
			result.EntitiesSkipped++
			result.Errors = append(result.Errors, err)
			continue
		}
		logger.Debug("%s: %d chunks from %d documents", record.Ticker, len(chunks), len(record.Documents))
		result.Chunks = append(result.Chunks, chunks...)
	}
	return result
}

func validateRecord(record domain.RawEntityRecord) error {
	if record.Ticker == "" {
		return fmt.Errorf("%w: missing ticker", domain.ErrMalformedRecord)
	}
	for i, doc := range record.Documents {
		if !doc.Type.Valid() {
			return fmt.Errorf("%w: %s document %d has unknown type %q",
				domain.ErrMalformedRecord, record.Ticker, i, doc.Type)
		}
		if doc.Date == "" {
			return fmt.Errorf("%w: %s document %d (%s) has no date",
				domain.ErrMalformedRecord, record.Ticker, i, doc.Type)
		}
	}
	return nil
}

// SaveArtifact writes chunks as an indented JSON array, creating parent
// directories as needed.
func SaveArtifact(path string, chunks []domain.ChunkRecord) error {
	if chunks == nil {
		chunks = []domain.ChunkRecord{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a chunk artifact written by SaveArtifact.
func LoadArtifact(path string) ([]domain.ChunkRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var chunks []domain.ChunkRecord
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}
	return chunks, nil
}
