package index

// minFreeTail is the smallest amount of spare payload capacity an entry must
// retain after any write. The worst case single append is 9 bytes for a new
// rowid delta, 4 bytes for a freshly reserved size slot, 1 byte for a column
// marker, 3 bytes for a column number, and 5 bytes for a position delta.
const minFreeTail = 9 + fixed4Width + 1 + 3 + 5

// initialEntryCap is the payload capacity a brand new entry starts with.
// Doubling from here keeps reallocation rare for typical per-term doclists.
const initialEntryCap = 64

// entry is the per-term accumulator: an append-only byte buffer holding the
// doclist under construction for one distinct term, plus the cursor state
// needed to delta-encode the next write. Entries are owned exclusively by
// the hash table that created them; nothing outside this package retains a
// pointer across a table mutation.
type entry struct {
	key []byte

	buf []byte // payload bytes: the doclist being built for this term

	sizeSlotOffset int // offset of the current document's 4-byte size field

	lastRowid    int64
	lastColumn   int32
	lastPosition int32

	started bool // true once the first rowid has been written

	hashNext *entry // next entry in this term's bucket chain
	scanNext *entry // next entry in term-ascending order during a scan or drain
}

func newEntry(key []byte) *entry {
	k := make([]byte, len(key))
	copy(k, key)
	return &entry{
		key: k,
		buf: make([]byte, 0, initialEntryCap),
	}
}

// length reports the number of live payload bytes, i.e. the byte-accounting
// contribution of this entry.
func (e *entry) length() int {
	return len(e.buf)
}

// ensureTail grows buf, doubling its capacity, until at least minFreeTail
// bytes of free space remain past len(buf). Offsets already recorded
// (sizeSlotOffset) remain valid because growth only ever appends capacity;
// it never relocates live bytes to a different logical offset.
func (e *entry) ensureTail() {
	for cap(e.buf)-len(e.buf) < minFreeTail {
		grown := make([]byte, len(e.buf), max(cap(e.buf)*2, initialEntryCap))
		copy(grown, e.buf)
		e.buf = grown
	}
}

// appendVarint appends v to buf and returns the number of bytes written.
func (e *entry) appendVarint(v uint64) int {
	n := VarintLen(v)
	off := len(e.buf)
	e.buf = e.buf[:off+n]
	PutVarint(e.buf[off:], v)
	return n
}

// reserveFixed4 appends 4 zero bytes that a later finalize call will
// back-patch with the poslist size, and records their offset.
func (e *entry) reserveFixed4() int {
	off := len(e.buf)
	e.buf = append(e.buf, 0, 0, 0, 0)
	return off
}

// finalizeCurrent back-patches the live size slot with the number of bytes
// written to the current poslist since it was reserved. It is idempotent:
// calling it twice in a row without an intervening write reproduces the same
// bytes, since the computation only reads lengths that writes have already
// fixed.
func (e *entry) finalizeCurrent() {
	if !e.started {
		return
	}
	sz := len(e.buf) - e.sizeSlotOffset - fixed4Width
	PutFixed4(e.buf[e.sizeSlotOffset:e.sizeSlotOffset+fixed4Width], sz)
}

// write appends one token occurrence to the entry's doclist. column < 0
// marks a deletion tombstone for rowid: only the rowid-delta/size-slot
// bookkeeping is performed, producing a zero-length poslist. A tombstone for
// the rowid already being written discards the positions recorded for it so
// far, shrinking the payload.
func (e *entry) write(rowid int64, column int32, position int32) {
	e.ensureTail()

	switch {
	case !e.started:
		e.appendVarint(uint64(rowid))
		e.sizeSlotOffset = e.reserveFixed4()
		e.lastRowid = rowid
		e.lastColumn = 0
		e.lastPosition = 0
		e.started = true

	case rowid == e.lastRowid:
		// continue appending to the current document's poslist

	default: // rowid > e.lastRowid
		e.finalizeCurrent()
		e.appendVarint(uint64(rowid - e.lastRowid))
		e.sizeSlotOffset = e.reserveFixed4()
		e.lastColumn = 0
		e.lastPosition = 0
		e.lastRowid = rowid
	}

	if column < 0 {
		e.buf = e.buf[:e.sizeSlotOffset+fixed4Width]
		e.lastColumn = 0
		e.lastPosition = 0
		return
	}
	if column != e.lastColumn {
		e.buf = append(e.buf, 0x01)
		e.appendVarint(uint64(column))
		e.lastColumn = column
		e.lastPosition = 0
	}
	e.appendVarint(uint64(position - e.lastPosition + 2))
	e.lastPosition = position
}

// doclist finalizes the trailing size slot and returns a borrowed view of
// the payload bytes. The returned slice aliases the entry's internal buffer
// and is only valid until the next write to this entry.
func (e *entry) doclist() []byte {
	e.finalizeCurrent()
	return e.buf
}
