package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corvid-systems/ftsengine/pkg/kafka"
)

// AggregatedStats is a point-in-time snapshot of indexing activity across
// every shard: documents indexed and deleted, segments flushed and merged,
// and the tombstones a merge has dropped.
type AggregatedStats struct {
	TotalDocIndexed    int64   `json:"total_docs_indexed"`
	TotalDocIngested   int64   `json:"total_docs_ingested"`
	TotalDocDeleted    int64   `json:"total_docs_deleted"`
	TotalFlushes       int64   `json:"total_flushes"`
	TotalMerges        int64   `json:"total_merges"`
	TotalBytesIndexed  int64   `json:"total_bytes_indexed"`
	TombstonesDropped  int64   `json:"tombstones_dropped"`
	AvgIndexLatencyMs  float64 `json:"avg_index_latency_ms"`
	AvgFlushDurationMs float64 `json:"avg_flush_duration_ms"`
	DocsPerMinute      float64 `json:"docs_per_minute"`
}

// Aggregator consumes analytics events from Kafka and maintains running
// counters and latency sums for the indexing pipeline.
type Aggregator struct {
	mu sync.RWMutex

	totalDocIndexed   atomic.Int64
	totalDocIngested  atomic.Int64
	totalDocDeleted   atomic.Int64
	totalFlushes      atomic.Int64
	totalMerges       atomic.Int64
	totalBytesIndexed atomic.Int64
	tombstonesDropped atomic.Int64

	indexLatencySum  int64
	indexLatencyN    int64
	flushDurationSum int64
	flushDurationN   int64

	startTime time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		startTime: time.Now(),
		consumer:  consumer,
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns a Kafka MessageHandler that routes every analytics
// event to the matching recorder based on its envelope's Type field.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		envelope, err := kafka.DecodeJSON[struct {
			Type EventType `json:"type"`
		}](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event envelope", "error", err)
			return nil
		}

		switch envelope.Type {
		case EventIndexDoc:
			event, err := kafka.DecodeJSON[IndexEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.recordIndexEvent(event)
		case EventDeleteDoc:
			agg.totalDocDeleted.Add(1)
		case EventSegmentFlush:
			event, err := kafka.DecodeJSON[FlushEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode flush event", "error", err)
				return nil
			}
			agg.recordFlushEvent(event)
		case EventSegmentMerge:
			event, err := kafka.DecodeJSON[MergeEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode merge event", "error", err)
				return nil
			}
			agg.recordMergeEvent(event)
		case EventDocIngested:
			agg.totalDocIngested.Add(1)
		default:
			agg.logger.Warn("unknown analytics event type", "type", envelope.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordIndexEvent(event IndexEvent) {
	a.totalDocIndexed.Add(1)
	a.totalBytesIndexed.Add(int64(event.SizeBytes))

	a.mu.Lock()
	a.indexLatencySum += event.LatencyMs
	a.indexLatencyN++
	a.mu.Unlock()
}

func (a *Aggregator) recordFlushEvent(event FlushEvent) {
	a.totalFlushes.Add(1)

	a.mu.Lock()
	a.flushDurationSum += event.DurationMs
	a.flushDurationN++
	a.mu.Unlock()
}

func (a *Aggregator) recordMergeEvent(event MergeEvent) {
	a.totalMerges.Add(1)
	a.tombstonesDropped.Add(int64(event.TombstonesDropped))
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalDocIndexed:   a.totalDocIndexed.Load(),
		TotalDocIngested:  a.totalDocIngested.Load(),
		TotalDocDeleted:   a.totalDocDeleted.Load(),
		TotalFlushes:      a.totalFlushes.Load(),
		TotalMerges:       a.totalMerges.Load(),
		TotalBytesIndexed: a.totalBytesIndexed.Load(),
		TombstonesDropped: a.tombstonesDropped.Load(),
	}
	if a.indexLatencyN > 0 {
		stats.AvgIndexLatencyMs = float64(a.indexLatencySum) / float64(a.indexLatencyN)
	}
	if a.flushDurationN > 0 {
		stats.AvgFlushDurationMs = float64(a.flushDurationSum) / float64(a.flushDurationN)
	}
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.DocsPerMinute = float64(stats.TotalDocIndexed) / elapsed
	}
	return stats
}
