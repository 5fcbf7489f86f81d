package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/corvid-systems/ftsengine/internal/analytics"
	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/internal/indexer/merge"
	"github.com/corvid-systems/ftsengine/internal/indexer/segment"
	"github.com/corvid-systems/ftsengine/internal/indexer/tokenizer"
	"github.com/corvid-systems/ftsengine/pkg/config"
	"github.com/corvid-systems/ftsengine/pkg/metrics"
	"github.com/corvid-systems/ftsengine/pkg/resilience"
)

// Engine owns one shard's live pending-terms accumulator, its on-disk
// segment readers, and the byte counter that decides when to flush. The
// accumulator itself is not safe for concurrent use, so accMu serializes
// every operation that touches it, matching the accumulator's documented
// single-threaded contract.
type Engine struct {
	accMu     sync.Mutex
	acc       *index.Hash
	byteCount int64
	rowidTerms map[int64]map[string]struct{}

	writer   *segment.Writer
	readers  []*segment.Reader
	readerMu sync.RWMutex

	cfg    config.IndexerConfig
	logger *slog.Logger

	totalDocs   int64
	totalTokens int64
	statsMu     sync.RWMutex

	shardID   int
	collector *analytics.Collector
	metrics   *metrics.Metrics
}

// SetAnalytics attaches a collector this Engine publishes IndexEvent,
// DeleteEvent and FlushEvent records to, tagged with shardID. Not calling
// this leaves analytics collection off, which is fine for tests and
// single-shard tooling.
func (e *Engine) SetAnalytics(collector *analytics.Collector, shardID int) {
	e.collector = collector
	e.shardID = shardID
}

// SetMetrics attaches the Prometheus collectors this Engine updates as it
// indexes and flushes. Not calling this leaves the engine unmetered, which
// is fine for tests.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// NewEngine creates an Engine rooted at cfg.DataDir, loading any existing
// segments found there.
func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	e := &Engine{
		writer:     segment.NewWriter(cfg.DataDir),
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer"),
		rowidTerms: make(map[int64]map[string]struct{}),
	}
	e.acc = index.New(&e.byteCount)
	if err := e.loadExistingSegments(); err != nil {
		return nil, fmt.Errorf("loading existing segments: %w", err)
	}
	return e, nil
}

// IndexDocument tokenizes title into column 0 and body into column 1 and
// writes every resulting token into the live accumulator under rowid. It
// triggers a flush once the accumulator's byte counter crosses
// cfg.SegmentMaxSize.
func (e *Engine) IndexDocument(rowid int64, title, body string) error {
	start := time.Now()
	titleTokens := tokenizer.Tokenize(title, tokenizer.TitleColumn)
	bodyTokens := tokenizer.Tokenize(body, tokenizer.BodyColumn)

	e.statsMu.Lock()
	e.totalDocs++
	e.totalTokens += int64(len(titleTokens) + len(bodyTokens))
	e.statsMu.Unlock()

	seen := make(map[string]struct{}, len(titleTokens)+len(bodyTokens))

	e.accMu.Lock()
	for _, tok := range titleTokens {
		e.acc.Write([]byte(tok.Term), rowid, tok.Column, tok.Position)
		seen[tok.Term] = struct{}{}
	}
	for _, tok := range bodyTokens {
		e.acc.Write([]byte(tok.Term), rowid, tok.Column, tok.Position)
		seen[tok.Term] = struct{}{}
	}
	e.rowidTerms[rowid] = seen
	shouldFlush := e.byteCount >= e.cfg.SegmentMaxSize
	e.accMu.Unlock()

	e.logger.Debug("document indexed in memory",
		"rowid", rowid,
		"token_count", len(titleTokens)+len(bodyTokens),
		"byte_count", e.byteCount,
	)
	if e.collector != nil {
		e.collector.Track(analytics.IndexEvent{
			Type:       analytics.EventIndexDoc,
			DocumentID: fmt.Sprintf("%d", rowid),
			ShardID:    e.shardID,
			TokenCount: len(titleTokens) + len(bodyTokens),
			SizeBytes:  len(title) + len(body),
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now(),
		})
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.metrics.ShardDocCount.WithLabelValues(fmt.Sprintf("%d", e.shardID)).Set(float64(e.GetTotalDocs()))
	}
	if shouldFlush {
		e.logger.Info("accumulator reached max size, flushing to disk",
			"byte_count", e.byteCount,
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(context.Background()); err != nil {
			return fmt.Errorf("flushing accumulator: %w", err)
		}
	}
	return nil
}

// DeleteDocument writes a deletion marker (a negative column, per the
// accumulator's tombstone encoding) for every term rowid is known to have
// contributed. The accumulator itself does not track which terms a rowid
// touched, so the Engine keeps that mapping alongside it.
func (e *Engine) DeleteDocument(rowid int64) error {
	e.accMu.Lock()
	defer e.accMu.Unlock()

	terms, ok := e.rowidTerms[rowid]
	if !ok {
		return nil
	}
	for term := range terms {
		e.acc.Write([]byte(term), rowid, -1, 0)
	}
	delete(e.rowidTerms, rowid)

	if e.collector != nil {
		e.collector.Track(analytics.DeleteEvent{
			Type:       analytics.EventDeleteDoc,
			DocumentID: fmt.Sprintf("%d", rowid),
			ShardID:    e.shardID,
			Timestamp:  time.Now(),
		})
	}
	return nil
}

// Flush drains the live accumulator into a new on-disk segment and opens a
// fresh accumulator in its place. A no-op if the accumulator is empty.
func (e *Engine) Flush(ctx context.Context) error {
	start := time.Now()
	e.accMu.Lock()
	if e.acc.EntryCount() == 0 {
		e.accMu.Unlock()
		return nil
	}
	draining := e.acc
	e.acc = index.New(&e.byteCount)
	e.rowidTerms = make(map[int64]map[string]struct{})
	e.accMu.Unlock()

	segmentName, err := e.writer.WriteFrom(draining)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("writing segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		if e.metrics != nil {
			e.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.readerMu.Unlock()

	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"docs", reader.DocCount(),
		"active_segments", len(e.readers),
	)
	if e.collector != nil {
		e.collector.Track(analytics.FlushEvent{
			Type:       analytics.EventSegmentFlush,
			ShardID:    e.shardID,
			Segment:    segmentName,
			TermCount:  reader.Terms(),
			DocCount:   int(reader.DocCount()),
			DurationMs: time.Since(start).Milliseconds(),
			Timestamp:  time.Now(),
		})
	}
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues("success").Inc()
	}
	return nil
}

// PointQuery looks up term in the live accumulator and in every on-disk
// segment, newest segment first, and merges the results so a term touched
// both in memory and on disk returns a consistent view without an
// immediate flush.
func (e *Engine) PointQuery(term string) ([]index.Doc, error) {
	normalized := term
	if tokens := tokenizer.Tokenize(term, 0); len(tokens) > 0 {
		normalized = tokens[0].Term
	}

	var docs []index.Doc
	e.accMu.Lock()
	if payload, ok := e.acc.PointQuery([]byte(normalized)); ok {
		docs = append(docs, index.DecodeDoclist(payload)...)
	}
	e.accMu.Unlock()

	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	for i := len(readers) - 1; i >= 0; i-- {
		segDocs, err := readers[i].PointQuery(normalized)
		if err != nil {
			e.logger.Error("segment point query failed", "error", err)
			continue
		}
		docs = append(docs, segDocs...)
	}
	return docs, nil
}

func (e *Engine) GetAvgDocLength() float64 {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	if e.totalDocs == 0 {
		return 0
	}
	return float64(e.totalTokens) / float64(e.totalDocs)
}

func (e *Engine) GetTotalDocs() int64 {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.totalDocs
}

// Stats reports this shard's document count, on-disk segment count and
// total on-disk size, for the administrative RPC surface.
func (e *Engine) Stats() (docs int64, segments int64, sizeBytes int64) {
	e.statsMu.RLock()
	docs = e.totalDocs
	e.statsMu.RUnlock()

	e.readerMu.RLock()
	defer e.readerMu.RUnlock()
	segments = int64(len(e.readers))
	for _, r := range e.readers {
		if info, err := os.Stat(r.Path()); err == nil {
			sizeBytes += info.Size()
		}
	}
	return docs, segments, sizeBytes
}

// Merge folds the oldest min(MaxSegmentsBeforeMerge, len(readers)) on-disk
// segments into one, dropping postings tombstoned by a later segment. A
// no-op if fewer than two segments are eligible.
func (e *Engine) Merge(ctx context.Context) error {
	start := time.Now()

	e.readerMu.Lock()
	n := e.cfg.MaxSegmentsBeforeMerge
	if n <= 0 || n > len(e.readers) {
		n = len(e.readers)
	}
	if n < 2 {
		e.readerMu.Unlock()
		return nil
	}
	toMerge := e.readers[:n]
	remaining := append([]*segment.Reader{}, e.readers[n:]...)
	e.readerMu.Unlock()

	merger := merge.New(toMerge)
	segmentName, err := e.writer.WriteFrom(merger)
	if err != nil {
		return fmt.Errorf("writing merged segment: %w", err)
	}

	segPath := filepath.Join(e.cfg.DataDir, segmentName)
	reader, err := segment.OpenReader(segPath)
	if err != nil {
		return fmt.Errorf("opening merged segment for reading: %w", err)
	}

	e.readerMu.Lock()
	e.readers = append([]*segment.Reader{reader}, remaining...)
	e.readerMu.Unlock()

	var oldPaths []string
	for _, r := range toMerge {
		oldPaths = append(oldPaths, r.Path())
		if err := r.Close(); err != nil {
			e.logger.Error("closing merged-away segment", "error", err)
		}
	}
	for _, p := range oldPaths {
		if err := os.Remove(p); err != nil {
			e.logger.Error("removing merged-away segment file", "path", p, "error", err)
		}
	}

	e.logger.Info("segments merged",
		"input_segments", len(toMerge),
		"output_segment", segmentName,
		"tombstones_dropped", merger.TombstonesDropped,
	)
	if e.collector != nil {
		e.collector.Track(analytics.MergeEvent{
			Type:              analytics.EventSegmentMerge,
			ShardID:           e.shardID,
			InputSegments:     len(toMerge),
			OutputSegment:     segmentName,
			TombstonesDropped: merger.TombstonesDropped,
			DurationMs:        time.Since(start).Milliseconds(),
			Timestamp:         time.Now(),
		})
	}
	return nil
}

// StartMergeLoop periodically merges this shard's segments on
// cfg.MergeInterval, once at least MaxSegmentsBeforeMerge have accumulated.
func (e *Engine) StartMergeLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MergeInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.readerMu.RLock()
				count := len(e.readers)
				e.readerMu.RUnlock()
				if !merge.ShouldMerge(count, e.cfg.MaxSegmentsBeforeMerge) {
					continue
				}
				err := resilience.WithTimeout(ctx, e.cfg.MergeInterval, "segment-merge", e.Merge)
				if err != nil {
					e.logger.Error("periodic merge failed", "error", err)
				}
			}
		}
	}()
}

// StartFlushLoop flushes the engine periodically on cfg.FlushInterval,
// independent of the byte-counter trigger, stopping on ctx cancellation
// after one final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(context.Background()); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(ctx); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes any pending writes and closes every open segment reader.
func (e *Engine) Close() error {
	if err := e.Flush(context.Background()); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

// ReloadSegments rescans the data directory for segment files not already
// held open by this Engine (e.g. written by another process sharing the
// same directory) and opens readers for them. It returns the number of
// newly loaded segments.
func (e *Engine) ReloadSegments() int {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		e.logger.Error("reload: reading data directory", "error", err)
		return 0
	}

	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	known := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		known[filepath.Base(r.Path())] = struct{}{}
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".spdx") {
			continue
		}
		if _, ok := known[entry.Name()]; ok {
			continue
		}
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, entry.Name()))
		if err != nil {
			e.logger.Error("reload: opening segment", "segment", entry.Name(), "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
		loaded++
	}
	return loaded
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".spdx") {
			segFiles = append(segFiles, entry.Name())
		}
	}
	sort.Strings(segFiles)

	for _, name := range segFiles {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"docs", reader.DocCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}
