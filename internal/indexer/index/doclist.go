package index

// Sink receives the callbacks issued by Hash.Iterate while it drains the
// table. OnTerm announces a new term, OnDoc is called once per document in
// that term's doclist with a framed [size-prefix || poslist] byte slice
// ready to be appended verbatim after a rowid-delta varint in a segment,
// and OnTermEnd closes out the term. The first non-nil error returned by any
// callback aborts the drain; entries not yet visited are still discarded.
type Sink interface {
	OnTerm(term []byte) error
	OnDoc(rowid int64, framed []byte) error
	OnTermEnd() error
}

// emitDocs walks one entry's finalized doclist payload and issues one OnDoc
// callback per document block. The framed slice handed to OnDoc aliases the
// entry's own buffer: it starts naturalLen bytes before the poslist (so that
// re-reading it as a plain varint reproduces the same size value the fixed
// 4-byte field holds) and runs through the end of the poslist. No bytes are
// copied or re-encoded.
func emitDocs(payload []byte, sink Sink) error {
	var rowid int64
	off := 0
	for off < len(payload) {
		delta, n := GetVarint(payload[off:])
		off += n
		rowid += int64(delta)

		size, naturalLen := GetFixed4(payload[off : off+fixed4Width])
		poslistStart := off + fixed4Width
		poslistEnd := poslistStart + size
		framed := payload[poslistStart-naturalLen : poslistEnd]

		if err := sink.OnDoc(rowid, framed); err != nil {
			return err
		}
		off = poslistEnd
	}
	return nil
}

// Position is a single (column, position) pair decoded from a poslist.
type Position struct {
	Column   int32
	Position int32
}

// Doc is one document's decoded contribution to a term's doclist.
type Doc struct {
	Rowid     int64
	Positions []Position
	Deleted   bool
}

// DecodeDoclist parses a raw doclist payload, as returned by PointQuery or a
// scan cursor, into its constituent documents. It is the inverse of the
// encoding performed by entry.write and exists for verification, diagnostics,
// and for higher layers that want decoded positions rather than raw bytes.
// The size field between the rowid delta and the poslist is the fixed
// 4-byte form, matching what entry.doclist returns.
func DecodeDoclist(payload []byte) []Doc {
	return decodeDoclist(payload, func(b []byte) (size, fieldWidth int) {
		size, _ = GetFixed4(b[:fixed4Width])
		return size, fixed4Width
	})
}

// DecodeSegmentDoclist parses a doclist payload as written to a segment
// file by segment.Writer: the size field between the rowid delta and the
// poslist is the natural-width plain varint Hash.Iterate's framed OnDoc
// argument carries, not the in-memory fixed 4-byte form.
func DecodeSegmentDoclist(payload []byte) []Doc {
	return decodeDoclist(payload, func(b []byte) (size, fieldWidth int) {
		v, n := GetVarint(b)
		return int(v), n
	})
}

// sizeFieldFunc reads the size field starting at b and returns the decoded
// size plus how many bytes the field itself occupied.
type sizeFieldFunc func(b []byte) (size, fieldWidth int)

func decodeDoclist(payload []byte, readSize sizeFieldFunc) []Doc {
	var docs []Doc
	var rowid int64
	off := 0
	for off < len(payload) {
		delta, n := GetVarint(payload[off:])
		off += n
		rowid += int64(delta)

		size, fieldWidth := readSize(payload[off:])
		off += fieldWidth
		poslist := payload[off : off+size]
		off += size

		docs = append(docs, Doc{
			Rowid:     rowid,
			Positions: decodePoslist(poslist),
			Deleted:   size == 0,
		})
	}
	return docs
}

// EncodePoslist is the inverse of decodePoslist: it re-encodes a document's
// decoded positions into column-marker and position-delta varints, matching
// entry.write's column-reset-to-zero convention for each new document. Used
// by the segment merge component to rebuild a poslist for documents carried
// forward from an input segment.
func EncodePoslist(positions []Position) []byte {
	var buf []byte
	var lastColumn, lastPosition int32
	for _, p := range positions {
		if p.Column != lastColumn {
			buf = append(buf, 0x01)
			buf = appendVarint(buf, uint64(p.Column))
			lastColumn = p.Column
			lastPosition = 0
		}
		buf = appendVarint(buf, uint64(p.Position-lastPosition+2))
		lastPosition = p.Position
	}
	return buf
}

// EncodeFramedDoc wraps a poslist in the natural-width size-varint framing
// that index.Sink.OnDoc expects, the same framing Hash.Iterate hands a sink
// for a live document. Used by the segment merge component to feed a
// reconstructed doclist through the same Sink-consuming segment.Writer the
// accumulator drain uses.
func EncodeFramedDoc(poslist []byte) []byte {
	framed := appendVarint(nil, uint64(len(poslist)))
	return append(framed, poslist...)
}

func appendVarint(dst []byte, v uint64) []byte {
	n := VarintLen(v)
	off := len(dst)
	dst = append(dst, make([]byte, n)...)
	PutVarint(dst[off:], v)
	return dst
}

// decodePoslist decodes a poslist's column-marker and position-delta
// varints into a flat sequence of absolute (column, position) pairs.
func decodePoslist(poslist []byte) []Position {
	var positions []Position
	var column, pos int32
	i := 0
	for i < len(poslist) {
		if poslist[i] == 0x01 {
			i++
			c, n := GetVarint(poslist[i:])
			i += n
			column = int32(c)
			pos = 0
			continue
		}
		v, n := GetVarint(poslist[i:])
		i += n
		pos += int32(v) - 2
		positions = append(positions, Position{Column: column, Position: pos})
	}
	return positions
}
