package segment

import (
	"os"
	"testing"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
)

func writeGarbageFile(path string) error {
	return os.WriteFile(path, make([]byte, HeaderSize), 0644)
}

func buildHash(t *testing.T, docs map[string][]int64) *index.Hash {
	t.Helper()
	var byteCount int64
	h := index.New(&byteCount)
	for term, rowids := range docs {
		for _, rowid := range rowids {
			h.Write([]byte(term), rowid, 0, 0)
		}
	}
	return h
}

func TestWriterReaderRoundTrip(t *testing.T) {
	h := buildHash(t, map[string][]int64{
		"search": {1, 3, 5},
		"engine": {2, 3},
		"fts":    {5},
	})

	w := NewWriter(t.TempDir())
	name, err := w.WriteFrom(h)
	if err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	if name == "" {
		t.Fatal("expected non-empty segment name")
	}

	r, err := OpenReader(w.finalPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if r.Terms() != 3 {
		t.Fatalf("Terms() = %d, want 3", r.Terms())
	}

	docs, err := r.PointQuery("search")
	if err != nil {
		t.Fatalf("PointQuery: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("len(docs) = %d, want 3", len(docs))
	}
	var rowids []int64
	for _, d := range docs {
		rowids = append(rowids, d.Rowid)
	}
	want := []int64{1, 3, 5}
	for i, rowid := range want {
		if rowids[i] != rowid {
			t.Errorf("rowids[%d] = %d, want %d", i, rowids[i], rowid)
		}
	}

	if docs, err := r.PointQuery("missing"); err != nil || docs != nil {
		t.Errorf("PointQuery(missing) = %v, %v, want nil, nil", docs, err)
	}
}

func TestReaderPrefixScan(t *testing.T) {
	h := buildHash(t, map[string][]int64{
		"cat":      {1},
		"car":      {2},
		"care":     {3},
		"dog":      {4},
	})
	w := NewWriter(t.TempDir())
	if _, err := w.WriteFrom(h); err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	r, err := OpenReader(w.finalPath)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	terms, docs, err := r.PrefixScan("car")
	if err != nil {
		t.Fatalf("PrefixScan: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("terms = %v, want 2 entries", terms)
	}
	if terms[0] != "car" || terms[1] != "care" {
		t.Errorf("terms = %v, want [car care]", terms)
	}
	if len(docs) != 2 {
		t.Fatalf("docs len = %d, want 2", len(docs))
	}
}

func TestWriteFromEmptyHashFails(t *testing.T) {
	var byteCount int64
	h := index.New(&byteCount)
	w := NewWriter(t.TempDir())
	if _, err := w.WriteFrom(h); err == nil {
		t.Fatal("expected error draining an empty accumulator")
	}
}

func TestOpenReaderRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/bad.spdx"
	if err := writeGarbageFile(path); err != nil {
		t.Fatalf("writeGarbageFile: %v", err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected OpenReader to reject a file with bad magic bytes")
	}
}
