package analytics

import "time"

type EventType string

const (
	EventIndexDoc     EventType = "index_document"
	EventDeleteDoc    EventType = "delete_document"
	EventSegmentFlush EventType = "segment_flush"
	EventSegmentMerge EventType = "segment_merge"
	EventDocIngested  EventType = "document_ingested"
)

// IngestEvent records one document accepted by the ingestion service, before
// it reaches the indexer. Published in batches by the collector package
// rather than one-by-one, since the ingestion HTTP path is latency-sensitive
// and shouldn't block a caller's response on an analytics publish.
type IngestEvent struct {
	Type        EventType `json:"type"`
	DocumentID  string    `json:"document_id"`
	ShardID     int       `json:"shard_id"`
	ContentSize int       `json:"content_size"`
	Timestamp   time.Time `json:"timestamp"`
}

// IndexEvent records one document passing through IndexDocument, including
// how much it grew the accumulator's byte counter.
type IndexEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	ShardID    int       `json:"shard_id"`
	TokenCount int       `json:"token_count"`
	SizeBytes  int       `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeleteEvent records one document passing through DeleteDocument.
type DeleteEvent struct {
	Type       EventType `json:"type"`
	DocumentID string    `json:"document_id"`
	ShardID    int       `json:"shard_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// FlushEvent records one accumulator drain into a new level-0 segment.
type FlushEvent struct {
	Type       EventType `json:"type"`
	ShardID    int       `json:"shard_id"`
	Segment    string    `json:"segment"`
	TermCount  int       `json:"term_count"`
	DocCount   int       `json:"doc_count"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// MergeEvent records one segment-merge compaction run.
type MergeEvent struct {
	Type              EventType `json:"type"`
	ShardID           int       `json:"shard_id"`
	InputSegments     int       `json:"input_segments"`
	OutputSegment     string    `json:"output_segment"`
	TombstonesDropped int       `json:"tombstones_dropped"`
	DurationMs        int64     `json:"duration_ms"`
	Timestamp         time.Time `json:"timestamp"`
}
