// Package merge folds several level-0 segments produced by accumulator
// flushes into one, dropping postings for any rowid a later segment
// tombstoned. It is driven by the engine's merge loop, which on every
// IndexerConfig.MergeInterval tick merges once a shard holds at least
// IndexerConfig.MaxSegmentsBeforeMerge segments.
package merge

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/internal/indexer/segment"
)

// Merger drains a fixed set of segment readers, oldest first, into a single
// sorted stream of (term, doclist) pairs suitable for segment.Writer.WriteFrom.
// It implements segment.Drainable the same way index.Hash does, so the two
// can share a writer.
type Merger struct {
	readers []*segment.Reader

	// TombstonesDropped counts postings discarded because a later segment
	// tombstoned that rowid for that term. Populated as Iterate runs.
	TombstonesDropped int
}

// New creates a Merger over readers, which must be ordered oldest to
// newest — a later reader's entry for a given term/rowid always wins.
func New(readers []*segment.Reader) *Merger {
	return &Merger{readers: readers}
}

// cursor walks one reader's dictionary in on-disk (ascending term) order.
type cursor struct {
	reader *segment.Reader
	dict   []segment.DictEntry
	pos    int
	age    int // index into Merger.readers; higher means newer
}

func (c *cursor) term() string { return c.dict[c.pos].Term }
func (c *cursor) done() bool   { return c.pos >= len(c.dict) }

// cursorHeap is a min-heap over cursors ordered by current term, breaking
// ties in favor of the older reader so callers see tombstones applied in
// write order.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if h[i].term() != h[j].term() {
		return h[i].term() < h[j].term()
	}
	return h[i].age < h[j].age
}
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Iterate walks every distinct term across all input readers in ascending
// order, merging each term's per-segment doclists into one deletion-aware
// doclist, and issues the same OnTerm/OnDoc/OnTermEnd sequence Hash.Iterate
// would for a sink consuming the merged result.
func (m *Merger) Iterate(sink index.Sink) error {
	h := &cursorHeap{}
	for age, r := range m.readers {
		c := &cursor{reader: r, dict: r.Dict(), age: age}
		if !c.done() {
			heap.Push(h, c)
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		term := (*h)[0].term()
		var group []*cursor
		for h.Len() > 0 && (*h)[0].term() == term {
			group = append(group, heap.Pop(h).(*cursor))
		}
		// group is sorted oldest-to-newest by construction (ties broken by age).
		sort.Slice(group, func(i, j int) bool { return group[i].age < group[j].age })

		if err := m.emitTerm(term, group, sink); err != nil {
			return err
		}

		for _, c := range group {
			c.pos++
			if !c.done() {
				heap.Push(h, c)
			}
		}
	}
	return nil
}

// emitTerm walks group oldest to newest. latest holds each rowid's most
// recent doc; tombstoned tracks whether that rowid's most recent occurrence
// was a deletion marker. Membership in tombstoned decides survival.
func (m *Merger) emitTerm(term string, group []*cursor, sink index.Sink) error {
	latest := make(map[int64]*index.Doc)
	tombstoned := roaring.New()

	for _, c := range group {
		docs, err := c.reader.DocsAt(c.pos)
		if err != nil {
			return fmt.Errorf("reading postings for term %q: %w", term, err)
		}
		for i := range docs {
			d := docs[i]
			id := uint32(d.Rowid)
			if d.Deleted {
				tombstoned.Add(id)
			} else {
				tombstoned.Remove(id)
			}
			latest[d.Rowid] = &docs[i]
		}
	}

	rowids := make([]int64, 0, len(latest))
	for rowid := range latest {
		if tombstoned.Contains(uint32(rowid)) {
			m.TombstonesDropped++
			continue
		}
		rowids = append(rowids, rowid)
	}
	if len(rowids) == 0 {
		return nil
	}
	sort.Slice(rowids, func(i, j int) bool { return rowids[i] < rowids[j] })

	if err := sink.OnTerm([]byte(term)); err != nil {
		return err
	}
	for _, rowid := range rowids {
		doc := latest[rowid]
		poslist := index.EncodePoslist(doc.Positions)
		if err := sink.OnDoc(rowid, index.EncodeFramedDoc(poslist)); err != nil {
			return err
		}
	}
	return sink.OnTermEnd()
}

// ShouldMerge reports whether the number of on-disk segments for a shard has
// reached the configured merge threshold.
func ShouldMerge(segmentCount, maxBeforeMerge int) bool {
	return maxBeforeMerge > 0 && segmentCount >= maxBeforeMerge
}
