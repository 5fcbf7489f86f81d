package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
)

// Reader provides read-only access to an immutable .spdx segment file:
// point lookup by exact term, and prefix-ordered enumeration over its
// dictionary, which is already in ascending term order because
// index.Hash.Iterate produced it that way.
type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	dict     []DictEntry
	postBase int64
}

// OpenReader opens an existing segment file and loads its dictionary.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// PointQuery returns the decoded postings for term, or nil if the segment
// has no entry for it.
func (r *Reader) PointQuery(term string) ([]index.Doc, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, nil
	}
	return r.readPostings(r.dict[idx])
}

// PrefixScan returns the decoded postings for every term with the given
// prefix, in ascending term order. An empty prefix returns every term.
func (r *Reader) PrefixScan(prefix string) ([]string, [][]index.Doc, error) {
	start := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= prefix
	})
	var terms []string
	var docs [][]index.Doc
	for i := start; i < len(r.dict) && strings.HasPrefix(r.dict[i].Term, prefix); i++ {
		d, err := r.readPostings(r.dict[i])
		if err != nil {
			return nil, nil, err
		}
		terms = append(terms, r.dict[i].Term)
		docs = append(docs, d)
	}
	return terms, docs, nil
}

func (r *Reader) readPostings(entry DictEntry) ([]index.Doc, error) {
	raw := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(raw, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Term, err)
	}
	return index.DecodeSegmentDoclist(raw), nil
}

// DocsAt decodes the postings for the i-th dictionary entry, in on-disk
// dictionary order. Used by the merge component to walk every segment's
// terms in the ascending order the dictionary is already stored in.
func (r *Reader) DocsAt(i int) ([]index.Doc, error) {
	return r.readPostings(r.dict[i])
}

// Path returns the filesystem path this reader was opened from.
func (r *Reader) Path() string {
	return r.filePath
}

// Terms reports the number of distinct terms in the segment.
func (r *Reader) Terms() int {
	return len(r.dict)
}

// DocCount reports the number of distinct rowids the segment covers.
func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// Dict exposes the segment's term dictionary in on-disk order, used by the
// merge component to drive a k-way merge across several segments' readers.
func (r *Reader) Dict() []DictEntry {
	return r.dict
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
