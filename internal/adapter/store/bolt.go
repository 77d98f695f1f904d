package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"finrag/internal/domain"
	"finrag/internal/logger"
)

// BoltFileName is the index file created under Options.Dir.
const BoltFileName = "index.db"

var bucketMeta = []byte("meta")

// BoltIndex persists documents in a BoltDB bucket per collection and keeps
// a copy of every vector in memory for brute-force search.
type BoltIndex struct {
	db     *bbolt.DB
	opts   Options
	bucket []byte

	mu   sync.RWMutex
	dim  int
	docs map[string]*domain.IndexedDocument
}

type storedDoc struct {
	Vector   []float32         `json:"v"`
	Text     string            `json:"t"`
	Metadata map[string]string `json:"m,omitempty"`
}

// OpenBolt opens or creates <dir>/index.db and loads the collection.
func OpenBolt(opts Options) (*BoltIndex, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(opts.Dir, BoltFileName), 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	idx := &BoltIndex{
		db:     db,
		opts:   opts,
		bucket: []byte("collection:" + opts.Collection),
		docs:   make(map[string]*domain.IndexedDocument),
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, idx.bucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load collection %s: %w", opts.Collection, err)
	}
	logger.Debug("opened %s collection %q with %d documents", BackendBolt, opts.Collection, len(idx.docs))
	return idx, nil
}

func (s *BoltIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var stored storedDoc
			if err := json.Unmarshal(v, &stored); err != nil {
				logger.Warn("skipping corrupted document %s: %v", k, err)
				return nil
			}
			if s.dim == 0 {
				s.dim = len(stored.Vector)
			}
			s.docs[string(k)] = &domain.IndexedDocument{
				ID:       string(k),
				Vector:   stored.Vector,
				Text:     stored.Text,
				Metadata: stored.Metadata,
			}
			return nil
		})
	})
}

func (s *BoltIndex) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset collection %s: %w", s.opts.Collection, err)
	}
	s.docs = make(map[string]*domain.IndexedDocument)
	s.dim = 0
	return nil
}

func (s *BoltIndex) Add(ctx context.Context, chunks []domain.ChunkRecord, embeddings [][]float32) (domain.AddResult, error) {
	return addInBatches(ctx, s, chunks, embeddings, s.opts.BatchSize)
}

func (s *BoltIndex) insertBatch(ctx context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := checkDimensions(s.dim, docs)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("collection bucket %s not found", s.bucket)
		}
		for _, d := range docs {
			data, err := json.Marshal(storedDoc{Vector: d.Vector, Text: d.Text, Metadata: d.Metadata})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(d.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Only update the cache once the transaction has committed.
	s.dim = dim
	for i := range docs {
		d := docs[i]
		s.docs[d.ID] = &d
	}
	return nil
}

func (s *BoltIndex) Search(ctx context.Context, query []float32, filter domain.Filter, k int) []domain.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validQuery(query, s.dim); err != nil {
		logger.Warn("search failed: %v", err)
		return []domain.SearchResult{}
	}

	docs := make([]*domain.IndexedDocument, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	return rank(query, docs, filter, k)
}

func (s *BoltIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *BoltIndex) Stats(ctx context.Context) domain.IndexStats {
	n, _ := s.Count(ctx)
	return domain.IndexStats{
		DocumentCount:  n,
		CollectionName: s.opts.Collection,
		Directory:      s.opts.Dir,
		Backend:        BackendBolt,
	}
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}

func (s *BoltIndex) schemaKey() []byte {
	return []byte(s.opts.Collection + "/schema")
}

// GetSchemaInfo returns the collection's recorded schema, zero if unset.
func (s *BoltIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(s.schemaKey())
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	return &info, err
}

func (s *BoltIndex) SetSchemaInfo(info *SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(s.schemaKey(), data)
	})
}
