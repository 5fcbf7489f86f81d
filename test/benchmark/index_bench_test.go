// Package benchmark contains Go benchmarks for the pending-terms accumulator
// and the indexer engine built on top of it, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/corvid-systems/ftsengine/internal/indexer"
	"github.com/corvid-systems/ftsengine/internal/indexer/index"
	"github.com/corvid-systems/ftsengine/pkg/config"
)

// BenchmarkHashWrite measures per-posting insert throughput into the
// pending-terms accumulator.
func BenchmarkHashWrite(b *testing.B) {
	var byteCount int64
	h := index.New(&byteCount)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		term := fmt.Sprintf("term%d", i%2000)
		h.Write([]byte(term), int64(i), 1, int32(i%50))
	}
}

// BenchmarkHashPointQuery measures single-term lookup latency over an
// accumulator pre-loaded with 10 000 documents.
func BenchmarkHashPointQuery(b *testing.B) {
	var byteCount int64
	h := index.New(&byteCount)
	for i := 0; i < 10000; i++ {
		h.Write([]byte("search"), int64(i), 1, 0)
		h.Write([]byte("engine"), int64(i), 1, 1)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		payload, ok := h.PointQuery([]byte("search"))
		if !ok {
			b.Fatal("expected term to be present")
		}
		_ = index.DecodeDoclist(payload)
	}
}

// BenchmarkHashIterate measures the cost of draining the accumulator in
// sorted term order, the path Flush takes when writing a segment.
func BenchmarkHashIterate(b *testing.B) {
	b.StopTimer()
	for i := 0; i < b.N; i++ {
		var byteCount int64
		h := index.New(&byteCount)
		for d := 0; d < 2000; d++ {
			term := fmt.Sprintf("term%d", d%200)
			h.Write([]byte(term), int64(d), 1, 0)
		}
		b.StartTimer()
		_ = h.Iterate(nopSink{})
		b.StopTimer()
	}
}

type nopSink struct{}

func (nopSink) OnTerm(term []byte) error              { return nil }
func (nopSink) OnDoc(rowid int64, framed []byte) error { return nil }
func (nopSink) OnTermEnd() error                       { return nil }

// BenchmarkEngineIndexDocument measures full engine indexing throughput at
// various pre-loaded corpus sizes.
func BenchmarkEngineIndexDocument(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			cfg := config.IndexerConfig{
				DataDir:        b.TempDir(),
				SegmentMaxSize: 100 * 1024 * 1024,
				FlushInterval:  0,
			}
			engine, err := indexer.NewEngine(cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			for i := 0; i < preload; i++ {
				if err := engine.IndexDocument(int64(i), "preload doc", "preloading documents for benchmark warmup phase"); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				rowid := int64(preload + i)
				if err := engine.IndexDocument(rowid, "benchmark title", "benchmark document body for measuring indexing throughput"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEnginePointQuery measures end-to-end point-query latency across
// 10 000 indexed documents.
func BenchmarkEnginePointQuery(b *testing.B) {
	cfg := config.IndexerConfig{
		DataDir:        b.TempDir(),
		SegmentMaxSize: 100 * 1024 * 1024,
		FlushInterval:  0,
	}
	engine, err := indexer.NewEngine(cfg)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	terms := []string{"distributed", "search", "analytics", "platform", "indexing", "query", "engine", "ranking"}
	for i := 0; i < 10000; i++ {
		title := fmt.Sprintf("document about %s and %s", terms[i%len(terms)], terms[(i+1)%len(terms)])
		body := fmt.Sprintf("this document covers %s %s %s in production systems",
			terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		if err := engine.IndexDocument(int64(i), title, body); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, err := engine.PointQuery(terms[i%len(terms)])
		if err != nil {
			b.Fatal(err)
		}
		_ = results
	}
}
