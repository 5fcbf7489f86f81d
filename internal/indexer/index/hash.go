package index

import "bytes"

// initialSlotCount is the number of buckets a freshly created Hash starts
// with. It doubles from here as entries accumulate.
const initialSlotCount = 1024

// mergeSlotCount is the number of binary-lifting merge slots used by
// collectSorted. 32 slots comfortably cover a term count past 4 billion
// (2^32) before the lifting scheme would need to lift into slot 33.
const mergeSlotCount = 32

// Hash is the in-memory accumulator for one level-0 generation of postings.
// Writes land in per-term entries chained off a bucket array; a point query
// walks one chain; a drain (Iterate) or non-destructive scan (ScanInit and
// friends) visits every entry in ascending term order via a bottom-up merge
// of the bucket chains.
//
// A Hash is not safe for concurrent use. Callers serialize access the same
// way the surrounding engine serializes document ingestion against flush.
type Hash struct {
	slots      []*entry
	entryCount int

	byteCount *int64 // externally owned; nil disables byte accounting

	scanCurrent *entry
}

// New creates an empty Hash. byteCount, if non-nil, is incremented by the
// growth (or shrink, on deletion markers) of every entry's payload on every
// Write, so the caller can trigger a flush once accumulated bytes cross a
// configured threshold. The counter is never reset by Clear; ownership of
// that decision belongs to the caller.
func New(byteCount *int64) *Hash {
	return &Hash{
		slots:     make([]*entry, initialSlotCount),
		byteCount: byteCount,
	}
}

// hashKey computes the bucket index for key over a table of nSlot buckets.
// The function folds the key back-to-front through a shift-xor so that
// terms sharing a long common prefix (the common case for natural-language
// tokens) still land in well-distributed buckets.
func hashKey(nSlot int, key []byte) int {
	h := uint32(13)
	for i := len(key) - 1; i >= 0; i-- {
		h = (h << 3) ^ h ^ uint32(key[i])
	}
	return int(h % uint32(nSlot))
}

// resize doubles the bucket array and rehashes every live entry into it.
// Entry payloads themselves are untouched; only chain pointers move.
func (h *Hash) resize() {
	newSlots := make([]*entry, len(h.slots)*2)
	for _, head := range h.slots {
		for e := head; e != nil; {
			next := e.hashNext
			idx := hashKey(len(newSlots), e.key)
			e.hashNext = newSlots[idx]
			newSlots[idx] = e
			e = next
		}
	}
	h.slots = newSlots
}

func (h *Hash) find(term []byte) *entry {
	idx := hashKey(len(h.slots), term)
	for e := h.slots[idx]; e != nil; e = e.hashNext {
		if bytes.Equal(e.key, term) {
			return e
		}
	}
	return nil
}

// Write records one occurrence of term at (rowid, column, position). column
// negative records a deletion tombstone instead of a position: a caller
// wanting to remove a document writes a tombstone for every term it no
// longer wants to match, at whatever rowid owned the stale occurrences.
//
// rowid must be monotonically non-decreasing across calls sharing the same
// term, and position must be monotonically non-decreasing across calls
// sharing the same (term, rowid, column); this mirrors a single forward
// tokenizer pass over one document at a time and is not checked here.
func (h *Hash) Write(term []byte, rowid int64, column int32, position int32) {
	e := h.find(term)
	if e == nil {
		if h.entryCount*2 >= len(h.slots) {
			h.resize()
		}
		idx := hashKey(len(h.slots), term)
		e = newEntry(term)
		e.hashNext = h.slots[idx]
		h.slots[idx] = e
		h.entryCount++
	}

	before := e.length()
	e.write(rowid, column, position)
	after := e.length()
	if h.byteCount != nil {
		*h.byteCount += int64(after - before)
	}
}

// PointQuery returns the raw doclist payload for term, and whether term has
// any entry at all. The returned slice is a borrowed view into the table's
// internal buffer and is invalidated by the next Write to the same term or
// by Clear.
func (h *Hash) PointQuery(term []byte) ([]byte, bool) {
	e := h.find(term)
	if e == nil {
		return nil, false
	}
	return e.doclist(), true
}

// EntryCount reports the number of distinct terms currently held.
func (h *Hash) EntryCount() int {
	return h.entryCount
}

// Clear discards every entry, returning the table to the state New produced
// except for its bucket array capacity, which is retained to avoid
// re-growing on the next generation. The byte counter passed to New, if any,
// is left untouched: deciding whether a flush zeroes it is the caller's call.
func (h *Hash) Clear() {
	for i := range h.slots {
		h.slots[i] = nil
	}
	h.entryCount = 0
	h.scanCurrent = nil
}

// compareTerms orders two terms byte-lexicographically, with a shorter term
// that is a prefix of a longer one sorting first.
func compareTerms(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// mergeChains merges two term-ascending chains linked through scanNext into
// one. Either argument may be nil.
func mergeChains(a, b *entry) *entry {
	var dummy entry
	tail := &dummy
	for a != nil && b != nil {
		if compareTerms(a.key, b.key) <= 0 {
			tail.scanNext = a
			tail = a
			a = a.scanNext
		} else {
			tail.scanNext = b
			tail = b
			b = b.scanNext
		}
	}
	if a != nil {
		tail.scanNext = a
	} else {
		tail.scanNext = b
	}
	return dummy.scanNext
}

// collectSorted links every entry whose key matches prefix (or every entry,
// if prefix is nil) into a single term-ascending chain via scanNext, using a
// 32-slot binary-lifting merge: each matching entry enters as a one-entry run
// and is merged upward through the slots as in a bottom-up merge sort (slot i
// holds a run of 2^i entries), and the slots are folded together at the end.
// This keeps the total comparison work O(n log n).
func (h *Hash) collectSorted(prefix []byte) *entry {
	var slots [mergeSlotCount]*entry
	for _, head := range h.slots {
		for e := head; e != nil; {
			next := e.hashNext
			if prefix == nil || bytes.HasPrefix(e.key, prefix) {
				e.scanNext = nil
				cur := e
				i := 0
				for slots[i] != nil {
					cur = mergeChains(cur, slots[i])
					slots[i] = nil
					i++
				}
				slots[i] = cur
			}
			e = next
		}
	}

	var result *entry
	for i := 0; i < mergeSlotCount; i++ {
		result = mergeChains(result, slots[i])
	}
	return result
}

// Iterate drains the table in ascending term order, calling sink.OnTerm,
// then sink.OnDoc once per document in that term's doclist, then
// sink.OnTermEnd, before moving to the next term. It empties the table as
// part of draining: a term already handed to the sink cannot be observed
// again by a subsequent Write until it next appears. If any callback
// returns an error, Iterate stops and returns it immediately; terms not yet
// visited are dropped along with the rest of the table.
func (h *Hash) Iterate(sink Sink) error {
	list := h.collectSorted(nil)
	h.Clear()

	for e := list; e != nil; e = e.scanNext {
		if err := sink.OnTerm(e.key); err != nil {
			return err
		}
		if err := emitDocs(e.doclist(), sink); err != nil {
			return err
		}
		if err := sink.OnTermEnd(); err != nil {
			return err
		}
	}
	return nil
}

// ScanInit begins a non-destructive, term-ascending cursor over every entry
// whose key has prefix as a prefix. Pass nil to scan the whole table. Unlike
// Iterate, the table is left intact: concurrent point queries and further
// writes to terms not yet visited by the cursor remain valid, though writes
// performed after ScanInit are not guaranteed to be reflected by the cursor.
func (h *Hash) ScanInit(prefix []byte) {
	h.scanCurrent = h.collectSorted(prefix)
}

// ScanEof reports whether the cursor has been exhausted.
func (h *Hash) ScanEof() bool {
	return h.scanCurrent == nil
}

// ScanNext advances the cursor to the next entry. Calling it once ScanEof is
// true is a no-op.
func (h *Hash) ScanNext() {
	if h.scanCurrent != nil {
		h.scanCurrent = h.scanCurrent.scanNext
	}
}

// ScanEntry returns the term and doclist payload at the cursor's current
// position. It panics if ScanEof is true, mirroring the teacher's other
// cursor accessors that assume the caller checks ScanEof first.
func (h *Hash) ScanEntry() (term []byte, doclist []byte) {
	e := h.scanCurrent
	return e.key, e.doclist()
}
