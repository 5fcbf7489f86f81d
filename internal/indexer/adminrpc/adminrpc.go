// Package adminrpc exposes a small administrative surface over the
// indexer's shard router: triggering a flush, looking up a term, and pulling
// per-shard statistics, without going through the ingestion HTTP path.
package adminrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/internal/indexer/shard"
	"github.com/corvid-systems/ftsengine/pkg/grpc"
	"github.com/corvid-systems/ftsengine/pkg/proto"
)

// Register wires Flush, Lookup and Stats handlers for router onto server.
func Register(server *grpc.Server, router *shard.Router) {
	logger := slog.Default().With("component", "admin-rpc")

	server.Register("IndexService.Flush", func(ctx context.Context, req json.RawMessage) (any, error) {
		var flushReq proto.FlushRequest
		if err := json.Unmarshal(req, &flushReq); err != nil {
			return nil, fmt.Errorf("decoding flush request: %w", err)
		}
		if flushReq.ShardID == 0 {
			if err := router.FlushAll(); err != nil {
				return nil, fmt.Errorf("flushing all shards: %w", err)
			}
			for id := range router.GetAllEngines() {
				if err := router.InvalidateCache(ctx, id); err != nil {
					logger.Error("cache invalidation failed", "shard_id", id, "error", err)
				}
			}
			return &proto.FlushResponse{Success: true, Message: "all shards flushed"}, nil
		}
		engine, err := router.Route(int(flushReq.ShardID))
		if err != nil {
			return nil, err
		}
		if err := engine.Flush(ctx); err != nil {
			return nil, fmt.Errorf("flushing shard %d: %w", flushReq.ShardID, err)
		}
		if err := router.InvalidateCache(ctx, int(flushReq.ShardID)); err != nil {
			logger.Error("cache invalidation failed", "shard_id", flushReq.ShardID, "error", err)
		}
		logger.Info("shard flushed via admin rpc", "shard_id", flushReq.ShardID)
		return &proto.FlushResponse{Success: true}, nil
	})

	server.Register("IndexService.Lookup", func(ctx context.Context, req json.RawMessage) (any, error) {
		var lookupReq proto.LookupRequest
		if err := json.Unmarshal(req, &lookupReq); err != nil {
			return nil, fmt.Errorf("decoding lookup request: %w", err)
		}
		docs, hit, err := router.Lookup(ctx, int(lookupReq.ShardID), lookupReq.Term)
		if err != nil {
			return nil, fmt.Errorf("looking up term %q in shard %d: %w", lookupReq.Term, lookupReq.ShardID, err)
		}
		resp := &proto.LookupResponse{Term: lookupReq.Term, Docs: toLookupDocs(docs)}
		if hit {
			resp.Cache = "hit"
		} else {
			resp.Cache = "miss"
		}
		return resp, nil
	})

	server.Register("IndexService.Stats", func(ctx context.Context, req json.RawMessage) (any, error) {
		var statsReq proto.StatsRequest
		if err := json.Unmarshal(req, &statsReq); err != nil {
			return nil, fmt.Errorf("decoding stats request: %w", err)
		}

		engines := router.GetAllEngines()
		resp := &proto.StatsResponse{}
		if statsReq.ShardID != 0 {
			engine, err := router.Route(int(statsReq.ShardID))
			if err != nil {
				return nil, err
			}
			docs, segments, size := engine.Stats()
			resp.TotalDocs = docs
			resp.TotalSegments = segments
			resp.TotalSizeBytes = size
			resp.Shards = []proto.ShardStat{{
				ShardID:      statsReq.ShardID,
				DocCount:     docs,
				SegmentCount: segments,
				SizeBytes:    size,
			}}
			return resp, nil
		}

		for id, engine := range engines {
			docs, segments, size := engine.Stats()
			resp.TotalDocs += docs
			resp.TotalSegments += segments
			resp.TotalSizeBytes += size
			resp.Shards = append(resp.Shards, proto.ShardStat{
				ShardID:      int32(id),
				DocCount:     docs,
				SegmentCount: segments,
				SizeBytes:    size,
			})
		}
		return resp, nil
	})

	logger.Info("admin rpc handlers registered", "methods", server.MethodCount())
}

// toLookupDocs converts decoded accumulator/segment documents into their
// wire form for LookupResponse.
func toLookupDocs(docs []index.Doc) []proto.LookupDoc {
	out := make([]proto.LookupDoc, len(docs))
	for i, d := range docs {
		positions := make([]proto.LookupPosition, len(d.Positions))
		for j, p := range d.Positions {
			positions[j] = proto.LookupPosition{Column: p.Column, Position: p.Position}
		}
		out[i] = proto.LookupDoc{Rowid: d.Rowid, Positions: positions, Deleted: d.Deleted}
	}
	return out
}
