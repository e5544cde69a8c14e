package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/corag/internal/domain"
	"github.com/kailas-cloud/corag/internal/domain/chunk"
)

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return m.vec, m.err
}

type mockIndex struct {
	chunks []chunk.Chunk
	err    error
	gotVec []float32
	gotK   int
}

func (m *mockIndex) SearchKNN(_ context.Context, vec []float32, k int) ([]chunk.Chunk, error) {
	m.gotVec = vec
	m.gotK = k
	return m.chunks, m.err
}

func TestRetrieve_EmbedsThenSearches(t *testing.T) {
	want := []chunk.Chunk{chunk.New("a", "text", chunk.Source{}, 0.9, chunk.Corpus)}
	idx := &mockIndex{chunks: want}
	svc := New(idx, &mockEmbedder{vec: []float32{0.1, 0.2}})

	got, err := svc.Retrieve(context.Background(), "q", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "a" {
		t.Errorf("chunks = %v", chunk.IDs(got))
	}
	if idx.gotK != 4 {
		t.Errorf("k = %d, want 4", idx.gotK)
	}
	if len(idx.gotVec) != 2 {
		t.Errorf("vector not passed through: %v", idx.gotVec)
	}
}

func TestRetrieve_EmbedFailureWrapped(t *testing.T) {
	svc := New(&mockIndex{}, &mockEmbedder{err: errors.New("quota exceeded")})

	if _, err := svc.Retrieve(context.Background(), "q", 5); !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestRetrieve_SearchFailureWrapped(t *testing.T) {
	svc := New(&mockIndex{err: errors.New("index missing")}, &mockEmbedder{vec: []float32{0.1}})

	if _, err := svc.Retrieve(context.Background(), "q", 5); !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

// A deadline firing inside a collaborator must stay observable through the
// retrieval wrap so the transport can answer with a timeout status.
func TestRetrieve_DeadlineStaysInErrorChain(t *testing.T) {
	svc := New(&mockIndex{}, &mockEmbedder{err: context.DeadlineExceeded})

	_, err := svc.Retrieve(context.Background(), "q", 5)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline lost from chain: %v", err)
	}
}
