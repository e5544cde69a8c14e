// Package chunk defines the retrievable unit of context passed to the generator.
package chunk

// Origin identifies where a chunk came from.
type Origin string

const (
	// Corpus marks a chunk retrieved from the local vector index.
	Corpus Origin = "corpus"
	// Web marks a chunk produced by the web search fallback.
	Web Origin = "web"
)

// Source holds provenance metadata for a chunk.
type Source struct {
	DocumentID string
	Position   int
	Heading    string
}

// Chunk is a scored piece of document text. Immutable once constructed.
type Chunk struct {
	id      string
	content string
	source  Source
	score   float64
	origin  Origin
}

// New creates a chunk.
func New(id, content string, source Source, score float64, origin Origin) Chunk {
	return Chunk{id: id, content: content, source: source, score: score, origin: origin}
}

// ID returns the chunk identifier, unique within a corpus.
func (c *Chunk) ID() string { return c.id }

// Content returns the chunk text.
func (c *Chunk) Content() string { return c.content }

// Source returns the provenance metadata.
func (c *Chunk) Source() Source { return c.source }

// Score returns the similarity score relative to the query that produced the chunk.
func (c *Chunk) Score() float64 { return c.score }

// Origin returns where the chunk came from.
func (c *Chunk) Origin() Origin { return c.origin }

// IDs returns the identifiers of the given chunks in order.
func IDs(chunks []Chunk) []string {
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = chunks[i].id
	}
	return ids
}

// IDSet returns the identifiers of the given chunks as a set.
func IDSet(chunks []Chunk) map[string]struct{} {
	set := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		set[chunks[i].id] = struct{}{}
	}
	return set
}
