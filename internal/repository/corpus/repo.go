// Package corpus persists document chunks in the vector index and serves
// similarity lookups over them.
package corpus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/corag/internal/db"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
)

// Hash field names for stored chunks.
const (
	fieldContent  = "__content"
	fieldVector   = "vector"
	fieldDocument = "document_id"
	fieldPosition = "position"
	fieldHeading  = "heading"
)

// store is the consumer interface for corpus operations.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores chunks as Redis hashes under <prefix>chunk:<docID>:<position>
// and searches them through one FT index.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a corpus repository.
func New(s store, keyPrefix, indexName string, vectorDim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, indexName: indexName, vectorDim: vectorDim}
}

// WithHNSW sets HNSW build parameters for index creation.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the chunk index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := &db.IndexDefinition{
		Name:   r.indexName,
		Prefix: r.chunkKey(""),
		Vector: db.VectorField{
			Name:        fieldVector,
			Dim:         r.vectorDim,
			M:           r.hnsw.M,
			EFConstruct: r.hnsw.EFConstruct,
		},
		TagFields: []string{fieldDocument},
	}

	err := r.store.CreateIndex(ctx, def)
	if errors.Is(err, db.ErrIndexExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create chunk index: %w", err)
	}
	return nil
}

// Reindex drops and recreates the chunk index. Stored hashes survive the
// drop (no DD flag) and are re-indexed by the server in the background.
func (r *Repo) Reindex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("probe chunk index: %w", err)
	}
	if exists {
		if err := r.store.DropIndex(ctx, r.indexName); err != nil {
			return fmt.Errorf("drop chunk index: %w", err)
		}
	}
	return r.EnsureIndex(ctx)
}

// Upsert stores a chunk and its embedding vector.
func (r *Repo) Upsert(ctx context.Context, c *chunk.Chunk, vector []float32) error {
	if len(vector) != r.vectorDim {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), r.vectorDim)
	}

	fields := map[string]string{
		fieldContent:  c.Content(),
		fieldVector:   vectorToBytes(vector),
		fieldDocument: c.Source().DocumentID,
		fieldPosition: strconv.Itoa(c.Source().Position),
		fieldHeading:  c.Source().Heading,
	}

	if err := r.store.HSet(ctx, r.chunkKey(c.ID()), fields); err != nil {
		return fmt.Errorf("store chunk %s: %w", c.ID(), err)
	}
	return nil
}

// GetDocument returns a document's stored chunks ordered by position. A
// document with no stored chunks yields an empty slice.
func (r *Repo) GetDocument(ctx context.Context, documentID string) ([]chunk.Chunk, error) {
	// Ingestion always writes position 0 first, so one EXISTS probe on the
	// first chunk key settles document presence without a scan.
	ok, err := r.store.Exists(ctx, r.chunkKey(documentID+":0"))
	if err != nil {
		return nil, fmt.Errorf("probe document %s: %w", documentID, err)
	}
	if !ok {
		return nil, nil
	}

	keys, err := r.store.Scan(ctx, r.chunkKey(documentID+":*"))
	if err != nil {
		return nil, fmt.Errorf("scan document %s: %w", documentID, err)
	}

	chunks := make([]chunk.Chunk, 0, len(keys))
	for _, key := range keys {
		fields, err := r.store.HGetAll(ctx, key)
		if errors.Is(err, db.ErrKeyNotFound) {
			// Chunk deleted between scan and read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load chunk %s: %w", key, err)
		}

		id := strings.TrimPrefix(key, r.chunkKey(""))
		pos, _ := strconv.Atoi(fields[fieldPosition])
		src := chunk.Source{
			DocumentID: fields[fieldDocument],
			Position:   pos,
			Heading:    fields[fieldHeading],
		}
		chunks = append(chunks, chunk.New(id, fields[fieldContent], src, 0, chunk.Corpus))
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Source().Position < chunks[j].Source().Position
	})

	return chunks, nil
}

// DeleteDocument removes all chunks belonging to a document. Returns the
// number of chunks removed.
func (r *Repo) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.chunkKey(documentID+":*"))
	if err != nil {
		return 0, fmt.Errorf("scan document %s: %w", documentID, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return len(keys), nil
}

// Count returns the total number of stored chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, r.chunkKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan chunks: %w", err)
	}
	return len(keys), nil
}

// SearchKNN returns the top-k most similar chunks for a query vector,
// ordered by similarity.
func (r *Repo) SearchKNN(ctx context.Context, vector []float32, k int) ([]chunk.Chunk, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent, fieldDocument, fieldPosition, fieldHeading, "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	chunks := make([]chunk.Chunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, r.chunkKey(""))
		pos, _ := strconv.Atoi(entry.Fields[fieldPosition])
		src := chunk.Source{
			DocumentID: entry.Fields[fieldDocument],
			Position:   pos,
			Heading:    entry.Fields[fieldHeading],
		}
		chunks = append(chunks, chunk.New(id, entry.Fields[fieldContent], src, entry.Score, chunk.Corpus))
	}

	return chunks, nil
}

func (r *Repo) chunkKey(suffix string) string {
	return r.keyPrefix + "chunk:" + suffix
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
