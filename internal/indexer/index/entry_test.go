package index

import "testing"

// TestEntrySingleDocSingleColumn checks the simplest write sequence: one
// rowid, one column, a handful of increasing positions.
func TestEntrySingleDocSingleColumn(t *testing.T) {
	e := newEntry([]byte("term"))
	e.write(10, 0, 0)
	e.write(10, 0, 3)
	e.write(10, 0, 7)

	docs := DecodeDoclist(e.doclist())
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].Rowid != 10 {
		t.Fatalf("rowid: got %d, want 10", docs[0].Rowid)
	}
	want := []Position{{0, 0}, {0, 3}, {0, 7}}
	if len(docs[0].Positions) != len(want) {
		t.Fatalf("positions: got %v, want %v", docs[0].Positions, want)
	}
	for i, p := range want {
		if docs[0].Positions[i] != p {
			t.Fatalf("position %d: got %v, want %v", i, docs[0].Positions[i], p)
		}
	}
}

// TestEntryMultipleDocsAreRowidDeltaEncoded writes the same term at several
// rising rowids and checks each is recovered intact.
func TestEntryMultipleDocsAreRowidDeltaEncoded(t *testing.T) {
	e := newEntry([]byte("term"))
	e.write(5, 0, 1)
	e.write(5, 0, 2)
	e.write(9, 0, 0)
	e.write(100, 0, 4)

	docs := DecodeDoclist(e.doclist())
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	rowids := []int64{5, 9, 100}
	for i, want := range rowids {
		if docs[i].Rowid != want {
			t.Fatalf("doc %d rowid: got %d, want %d", i, docs[i].Rowid, want)
		}
	}
	if len(docs[0].Positions) != 2 || len(docs[1].Positions) != 1 || len(docs[2].Positions) != 1 {
		t.Fatalf("unexpected position counts: %+v", docs)
	}
}

// TestEntryMultiColumn checks that a column change emits a column marker and
// resets the position baseline for the new column.
func TestEntryMultiColumn(t *testing.T) {
	e := newEntry([]byte("term"))
	e.write(1, 0, 0)
	e.write(1, 0, 5)
	e.write(1, 1, 0)
	e.write(1, 1, 2)

	docs := DecodeDoclist(e.doclist())
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	want := []Position{{0, 0}, {0, 5}, {1, 0}, {1, 2}}
	got := docs[0].Positions
	if len(got) != len(want) {
		t.Fatalf("positions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

// TestEntryDeletionMarker checks that a negative column produces a
// zero-length poslist that DecodeDoclist reports as Deleted.
func TestEntryDeletionMarker(t *testing.T) {
	e := newEntry([]byte("term"))
	e.write(1, 0, 0)
	e.write(2, -1, 0)

	docs := DecodeDoclist(e.doclist())
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Deleted {
		t.Fatalf("doc 0 should not be a deletion marker")
	}
	if !docs[1].Deleted || len(docs[1].Positions) != 0 {
		t.Fatalf("doc 1: got %+v, want an empty deletion marker", docs[1])
	}
}

// TestEntryGrowthPreservesOffsets writes enough tokens to force several
// ensureTail reallocations and checks the decoded result is still correct,
// confirming that growth never invalidates sizeSlotOffset.
func TestEntryGrowthPreservesOffsets(t *testing.T) {
	e := newEntry([]byte("term"))
	const nDocs = 500
	for rowid := int64(1); rowid <= nDocs; rowid++ {
		for pos := int32(0); pos < 5; pos++ {
			e.write(rowid, 0, pos)
		}
	}

	docs := DecodeDoclist(e.doclist())
	if len(docs) != nDocs {
		t.Fatalf("got %d docs, want %d", len(docs), nDocs)
	}
	for i, d := range docs {
		if d.Rowid != int64(i+1) {
			t.Fatalf("doc %d: rowid got %d, want %d", i, d.Rowid, i+1)
		}
		if len(d.Positions) != 5 {
			t.Fatalf("doc %d: got %d positions, want 5", i, len(d.Positions))
		}
	}
}
