package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a term to its postings offset and length in the segment
// file. The postings bytes at [PostOffset, PostOffset+PostLen) are a
// sequence of <rowid_delta_varint><framed size+poslist> blocks, the exact
// shape index.Sink.OnDoc receives during a drain.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
}

// Drainable is anything a Writer can drain into a segment file. *index.Hash
// satisfies it.
type Drainable interface {
	Iterate(index.Sink) error
}

// Writer serialises one drain of a Drainable into a new .spdx segment file,
// atomically. A Writer also acts as the index.Sink passed to Iterate, so the
// drained bytes are written straight to the segment file with no
// intermediate in-memory copy.
type Writer struct {
	dataDir string

	f            *os.File
	tmpPath      string
	finalPath    string
	postingsBase int64

	dict       []DictEntry
	curTerm    string
	curOffset  int64
	curLen     int
	lastRowid  int64
	seenRowids map[int64]struct{}
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// WriteFrom drains src into a new segment file and returns the segment's
// file name. It fails if the drain produces no terms.
func (w *Writer) WriteFrom(src Drainable) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	segmentName := fmt.Sprintf("seg_%d.spdx", time.Now().UnixNano())
	w.finalPath = filepath.Join(w.dataDir, segmentName)
	w.tmpPath = w.finalPath + ".tmp"

	f, err := os.Create(w.tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	w.f = f
	defer func() {
		if w.f != nil {
			w.f.Close()
			os.Remove(w.tmpPath)
		}
	}()

	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header placeholder: %w", err)
	}
	w.postingsBase, _ = f.Seek(0, 1)
	w.dict = w.dict[:0]
	w.seenRowids = make(map[int64]struct{})

	if err := src.Iterate(w); err != nil {
		return "", fmt.Errorf("draining accumulator: %w", err)
	}
	if err := w.finalize(); err != nil {
		return "", err
	}
	w.f = nil

	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

// OnTerm implements index.Sink.
func (w *Writer) OnTerm(term []byte) error {
	w.curTerm = string(term)
	off, err := w.f.Seek(0, 1)
	if err != nil {
		return err
	}
	w.curOffset = off - w.postingsBase
	w.curLen = 0
	w.lastRowid = 0
	return nil
}

// OnDoc implements index.Sink. It writes the rowid delta as a generic
// varint, followed by the framed [size-varint || poslist] bytes Iterate
// already prepared, verbatim.
func (w *Writer) OnDoc(rowid int64, framed []byte) error {
	delta := rowid - w.lastRowid
	w.lastRowid = rowid
	w.seenRowids[rowid] = struct{}{}

	var buf [9]byte
	n := index.PutVarint(buf[:], uint64(delta))
	if _, err := w.f.Write(buf[:n]); err != nil {
		return fmt.Errorf("writing rowid delta: %w", err)
	}
	if _, err := w.f.Write(framed); err != nil {
		return fmt.Errorf("writing posting: %w", err)
	}
	w.curLen += n + len(framed)
	return nil
}

// OnTermEnd implements index.Sink.
func (w *Writer) OnTermEnd() error {
	w.dict = append(w.dict, DictEntry{
		Term:       w.curTerm,
		PostOffset: w.curOffset,
		PostLen:    w.curLen,
	})
	return nil
}

func (w *Writer) finalize() error {
	if len(w.dict) == 0 {
		return fmt.Errorf("cannot write empty segment")
	}
	f := w.f
	postingsEnd, _ := f.Seek(0, 1)
	postingsSize := postingsEnd - w.postingsBase
	dictStart := postingsEnd

	dictData, err := json.Marshal(w.dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	dictEnd, _ := f.Seek(0, 1)
	dictSize := dictEnd - dictStart
	checksum := crc32.ChecksumIEEE(dictData)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(w.seenRowids)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictSize))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsSize))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(w.dict)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(w.seenRowids)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(header[24:32], uint64(dictSize))
	binary.LittleEndian.PutUint64(header[32:40], uint64(w.postingsBase))
	binary.LittleEndian.PutUint64(header[40:48], uint64(postingsSize))
	if _, err := f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing segment file: %w", err)
	}
	return f.Close()
}
