package index

import (
	"fmt"
	"sort"
	"testing"
)

// TestHashWriteAndPointQuery checks the basic write/point_query contract for
// a handful of terms.
func TestHashWriteAndPointQuery(t *testing.T) {
	h := New(nil)
	h.Write([]byte("fox"), 1, 0, 0)
	h.Write([]byte("fox"), 1, 0, 4)
	h.Write([]byte("dog"), 2, 0, 0)

	payload, ok := h.PointQuery([]byte("fox"))
	if !ok {
		t.Fatalf("fox: not found")
	}
	docs := DecodeDoclist(payload)
	if len(docs) != 1 || docs[0].Rowid != 1 || len(docs[0].Positions) != 2 {
		t.Fatalf("fox doclist: %+v", docs)
	}

	if _, ok := h.PointQuery([]byte("missing")); ok {
		t.Fatalf("missing: expected not found")
	}

	if h.EntryCount() != 2 {
		t.Fatalf("entry count: got %d, want 2", h.EntryCount())
	}
}

// TestHashByteAccounting checks that the externally owned counter tracks the
// net growth of every entry's payload across writes.
func TestHashByteAccounting(t *testing.T) {
	var counted int64
	h := New(&counted)

	h.Write([]byte("fox"), 1, 0, 0)
	if counted <= 0 {
		t.Fatalf("counter did not grow on first write: %d", counted)
	}

	before := counted
	h.Write([]byte("fox"), 1, 0, 4)
	if counted <= before {
		t.Fatalf("counter did not grow on second write to same entry: before=%d after=%d", before, counted)
	}
}

// TestHashClearDoesNotResetByteCounter checks that Clear empties the table
// but leaves byte-accounting decisions to the caller.
func TestHashClearDoesNotResetByteCounter(t *testing.T) {
	var counted int64
	h := New(&counted)
	h.Write([]byte("fox"), 1, 0, 0)
	before := counted

	h.Clear()

	if counted != before {
		t.Fatalf("Clear changed the byte counter: before=%d after=%d", before, counted)
	}
	if h.EntryCount() != 0 {
		t.Fatalf("entry count after Clear: got %d, want 0", h.EntryCount())
	}
	if _, ok := h.PointQuery([]byte("fox")); ok {
		t.Fatalf("fox still queryable after Clear")
	}
}

// TestHashResizeSurvivesPointQuery writes enough distinct terms to force
// several table resizes and checks that every term remains reachable
// afterward.
func TestHashResizeSurvivesPointQuery(t *testing.T) {
	h := New(nil)
	const nTerms = 2048
	for i := 0; i < nTerms; i++ {
		term := []byte(fmt.Sprintf("term-%d", i))
		h.Write(term, int64(i), 0, 0)
	}

	if h.EntryCount() != nTerms {
		t.Fatalf("entry count: got %d, want %d", h.EntryCount(), nTerms)
	}
	for i := 0; i < nTerms; i++ {
		term := []byte(fmt.Sprintf("term-%d", i))
		payload, ok := h.PointQuery(term)
		if !ok {
			t.Fatalf("term-%d: not found after resize", i)
		}
		docs := DecodeDoclist(payload)
		if len(docs) != 1 || docs[0].Rowid != int64(i) {
			t.Fatalf("term-%d: got %+v", i, docs)
		}
	}
}

// fakeSink records every callback Iterate makes, in order, for assertions.
type fakeSink struct {
	terms [][]byte
	docs  map[string][]int64
	cur   string
}

func newFakeSink() *fakeSink {
	return &fakeSink{docs: make(map[string][]int64)}
}

func (s *fakeSink) OnTerm(term []byte) error {
	s.cur = string(term)
	s.terms = append(s.terms, append([]byte(nil), term...))
	return nil
}

func (s *fakeSink) OnDoc(rowid int64, framed []byte) error {
	s.docs[s.cur] = append(s.docs[s.cur], rowid)
	return nil
}

func (s *fakeSink) OnTermEnd() error {
	return nil
}

// TestHashIterateOrdersTermsAscendingAndDrainsTheTable checks that Iterate
// visits terms in byte-lexicographic order and leaves the table empty.
func TestHashIterateOrdersTermsAscendingAndDrainsTheTable(t *testing.T) {
	h := New(nil)
	terms := []string{"zebra", "apple", "mango", "apply", "app"}
	for i, term := range terms {
		h.Write([]byte(term), int64(i), 0, 0)
	}

	sink := newFakeSink()
	if err := h.Iterate(sink); err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	want := append([]string(nil), terms...)
	sort.Strings(want)
	if len(sink.terms) != len(want) {
		t.Fatalf("got %d terms, want %d", len(sink.terms), len(want))
	}
	for i, term := range want {
		if string(sink.terms[i]) != term {
			t.Fatalf("term %d: got %q, want %q", i, sink.terms[i], term)
		}
	}

	if h.EntryCount() != 0 {
		t.Fatalf("table not drained: entry count %d", h.EntryCount())
	}
}

// TestHashIterateFramedDocMatchesDecodedDoclist checks that the framed bytes
// Iterate hands to OnDoc decode, on their own, to the same poslist size the
// entry's own doclist payload records for that document.
func TestHashIterateFramedDocMatchesDecodedDoclist(t *testing.T) {
	h := New(nil)
	h.Write([]byte("term"), 1, 0, 0)
	h.Write([]byte("term"), 1, 0, 5)
	h.Write([]byte("term"), 1, 0, 9)

	payload, ok := h.PointQuery([]byte("term"))
	if !ok {
		t.Fatalf("term: not found")
	}
	rowidLen := VarintLen(1)
	wantSize, _ := GetFixed4(payload[rowidLen : rowidLen+fixed4Width])

	var framedLens []int
	var framedSizes []int
	sink := &callbackSink{
		onDoc: func(rowid int64, framed []byte) error {
			size, n := GetVarint(framed)
			framedSizes = append(framedSizes, int(size))
			framedLens = append(framedLens, len(framed)-n)
			return nil
		},
	}
	if err := h.Iterate(sink); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(framedLens) != 1 {
		t.Fatalf("got %d OnDoc calls, want 1", len(framedLens))
	}
	if framedSizes[0] != wantSize || framedLens[0] != wantSize {
		t.Fatalf("framed doc: size field %d, poslist bytes %d, want %d", framedSizes[0], framedLens[0], wantSize)
	}
}

// TestHashScanIsNonDestructive checks that ScanInit/Next/Eof/Entry visit
// every entry in order without emptying the table.
func TestHashScanIsNonDestructive(t *testing.T) {
	h := New(nil)
	terms := []string{"bee", "ant", "cat"}
	for i, term := range terms {
		h.Write([]byte(term), int64(i), 0, 0)
	}

	h.ScanInit(nil)
	var seen []string
	for !h.ScanEof() {
		term, _ := h.ScanEntry()
		seen = append(seen, string(term))
		h.ScanNext()
	}

	if len(seen) != 3 || seen[0] != "ant" || seen[1] != "bee" || seen[2] != "cat" {
		t.Fatalf("scan order: got %v", seen)
	}
	if h.EntryCount() != 3 {
		t.Fatalf("scan drained the table: entry count %d", h.EntryCount())
	}
}

// TestHashScanPrefixFiltersEntries checks that ScanInit with a prefix only
// visits matching terms.
func TestHashScanPrefixFiltersEntries(t *testing.T) {
	h := New(nil)
	for _, term := range []string{"cat", "car", "card", "dog", "cats"} {
		h.Write([]byte(term), 1, 0, 0)
	}

	h.ScanInit([]byte("car"))
	var seen []string
	for !h.ScanEof() {
		term, _ := h.ScanEntry()
		seen = append(seen, string(term))
		h.ScanNext()
	}

	want := []string{"car", "card"}
	if len(seen) != len(want) {
		t.Fatalf("got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("got %v, want %v", seen, want)
		}
	}
}

// callbackSink adapts function values to the Sink interface for tests that
// only care about one callback.
type callbackSink struct {
	onTerm    func([]byte) error
	onDoc     func(int64, []byte) error
	onTermEnd func() error
}

func (s *callbackSink) OnTerm(term []byte) error {
	if s.onTerm != nil {
		return s.onTerm(term)
	}
	return nil
}

func (s *callbackSink) OnDoc(rowid int64, framed []byte) error {
	if s.onDoc != nil {
		return s.onDoc(rowid, framed)
	}
	return nil
}

func (s *callbackSink) OnTermEnd() error {
	if s.onTermEnd != nil {
		return s.onTermEnd()
	}
	return nil
}
