package merge

import (
	"testing"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/internal/indexer/segment"
)

func writeSegment(t *testing.T, dataDir string, writes func(h *index.Hash)) *segment.Reader {
	t.Helper()
	var byteCount int64
	h := index.New(&byteCount)
	writes(h)

	w := segment.NewWriter(dataDir)
	name, err := w.WriteFrom(h)
	if err != nil {
		t.Fatalf("WriteFrom: %v", err)
	}
	r, err := segment.OpenReader(dataDir + "/" + name)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMergeCombinesSegments(t *testing.T) {
	dir := t.TempDir()
	seg1 := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("search"), 1, 0, 0)
		h.Write([]byte("engine"), 2, 0, 0)
	})
	seg2 := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("search"), 3, 0, 0)
	})

	m := New([]*segment.Reader{seg1, seg2})

	out := segment.NewWriter(dir)
	name, err := out.WriteFrom(m)
	if err != nil {
		t.Fatalf("WriteFrom(merger): %v", err)
	}

	merged, err := segment.OpenReader(dir + "/" + name)
	if err != nil {
		t.Fatalf("OpenReader(merged): %v", err)
	}
	defer merged.Close()

	docs, err := merged.PointQuery("search")
	if err != nil {
		t.Fatalf("PointQuery: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2 (rowid 1 and 3)", len(docs))
	}
	if docs[0].Rowid != 1 || docs[1].Rowid != 3 {
		t.Errorf("rowids = [%d %d], want [1 3]", docs[0].Rowid, docs[1].Rowid)
	}
}

func TestMergeAppliesTombstones(t *testing.T) {
	dir := t.TempDir()
	older := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("search"), 1, 0, 0)
		h.Write([]byte("search"), 2, 0, 0)
	})
	newer := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("search"), 1, -1, 0) // tombstone rowid 1
	})

	m := New([]*segment.Reader{older, newer})

	out := segment.NewWriter(dir)
	name, err := out.WriteFrom(m)
	if err != nil {
		t.Fatalf("WriteFrom(merger): %v", err)
	}
	if m.TombstonesDropped != 1 {
		t.Errorf("TombstonesDropped = %d, want 1", m.TombstonesDropped)
	}

	merged, err := segment.OpenReader(dir + "/" + name)
	if err != nil {
		t.Fatalf("OpenReader(merged): %v", err)
	}
	defer merged.Close()

	docs, err := merged.PointQuery("search")
	if err != nil {
		t.Fatalf("PointQuery: %v", err)
	}
	if len(docs) != 1 || docs[0].Rowid != 2 {
		t.Fatalf("docs = %v, want only rowid 2 to survive", docs)
	}
}

func TestMergeDropsTermWithNoSurvivors(t *testing.T) {
	dir := t.TempDir()
	older := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("gone"), 1, 0, 0)
		h.Write([]byte("stays"), 1, 0, 0)
	})
	newer := writeSegment(t, dir, func(h *index.Hash) {
		h.Write([]byte("gone"), 1, -1, 0)
	})

	m := New([]*segment.Reader{older, newer})
	out := segment.NewWriter(dir)
	name, err := out.WriteFrom(m)
	if err != nil {
		t.Fatalf("WriteFrom(merger): %v", err)
	}

	merged, err := segment.OpenReader(dir + "/" + name)
	if err != nil {
		t.Fatalf("OpenReader(merged): %v", err)
	}
	defer merged.Close()

	if merged.Terms() != 1 {
		t.Fatalf("Terms() = %d, want 1 (gone should be dropped entirely)", merged.Terms())
	}
	if docs, _ := merged.PointQuery("gone"); docs != nil {
		t.Errorf("expected gone to have no surviving postings, got %v", docs)
	}
}

func TestShouldMerge(t *testing.T) {
	cases := []struct {
		segmentCount, max int
		want               bool
	}{
		{0, 4, false},
		{3, 4, false},
		{4, 4, true},
		{5, 4, true},
		{10, 0, false},
	}
	for _, c := range cases {
		if got := ShouldMerge(c.segmentCount, c.max); got != c.want {
			t.Errorf("ShouldMerge(%d, %d) = %v, want %v", c.segmentCount, c.max, got, c.want)
		}
	}
}
