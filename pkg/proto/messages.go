// Package proto defines the shared message types used for internal RPC
// communication between the indexer's shards and an operator or coordinator
// process.
//
// These types are hand-written for zero-dependency usage over the
// platform's lightweight JSON-over-TCP RPC layer (see pkg/grpc).
package proto

// ---------- Common ----------

// Document represents a document across all services.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ContentHash string `json:"content_hash"`
	ContentSize int32  `json:"content_size"`
	ShardID     int32  `json:"shard_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	IndexedAt   int64  `json:"indexed_at,omitempty"`
}

// Pagination controls limit/offset for list endpoints.
type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// ---------- Index ----------

// IndexRequest is the input to the IndexDocument RPC.
type IndexRequest struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ShardID    int32  `json:"shard_id"`
}

// IndexResponse is the output of the IndexDocument RPC.
type IndexResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatsRequest optionally filters by shard (0 = all).
type StatsRequest struct {
	ShardID int32 `json:"shard_id"`
}

// StatsResponse contains index-level statistics.
type StatsResponse struct {
	TotalDocs      int64       `json:"total_docs"`
	TotalSegments  int64       `json:"total_segments"`
	TotalSizeBytes int64       `json:"total_size_bytes"`
	Shards         []ShardStat `json:"shards,omitempty"`
}

// ShardStat holds per-shard statistics.
type ShardStat struct {
	ShardID      int32 `json:"shard_id"`
	DocCount     int64 `json:"doc_count"`
	SegmentCount int64 `json:"segment_count"`
	SizeBytes    int64 `json:"size_bytes"`
}

// LookupRequest requests the doc list for a single term in a single shard.
type LookupRequest struct {
	ShardID int32  `json:"shard_id"`
	Term    string `json:"term"`
}

// LookupResponse carries the decoded documents a term's doclist contains,
// merged across the live accumulator and every on-disk segment.
type LookupResponse struct {
	Term  string      `json:"term"`
	Docs  []LookupDoc `json:"docs"`
	Cache string      `json:"cache"` // "hit" or "miss"
}

// LookupDoc is the wire form of index.Doc: one document's contribution to a
// term's doclist.
type LookupDoc struct {
	Rowid     int64            `json:"rowid"`
	Positions []LookupPosition `json:"positions,omitempty"`
	Deleted   bool             `json:"deleted,omitempty"`
}

// LookupPosition is the wire form of index.Position.
type LookupPosition struct {
	Column   int32 `json:"column"`
	Position int32 `json:"position"`
}

// FlushRequest triggers a segment flush.
type FlushRequest struct {
	ShardID int32 `json:"shard_id"`
}

// FlushResponse confirms the flush.
type FlushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
