package chunk

import "testing"

func TestIDs_PreservesOrder(t *testing.T) {
	chunks := []Chunk{
		New("doc-1:0", "a", Source{DocumentID: "doc-1"}, 0.9, Corpus),
		New("web:0", "b", Source{DocumentID: "https://example.com"}, 0, Web),
	}

	ids := IDs(chunks)
	if len(ids) != 2 || ids[0] != "doc-1:0" || ids[1] != "web:0" {
		t.Errorf("IDs = %v", ids)
	}
}

func TestIDSet(t *testing.T) {
	chunks := []Chunk{
		New("a", "x", Source{}, 0.5, Corpus),
		New("b", "y", Source{}, 0.4, Corpus),
	}

	set := IDSet(chunks)
	if len(set) != 2 {
		t.Fatalf("set size = %d, want 2", len(set))
	}
	if _, ok := set["a"]; !ok {
		t.Error("missing id a")
	}
	if _, ok := set["c"]; ok {
		t.Error("unexpected id c")
	}
}
