// Package publisher persists documents to PostgreSQL and publishes ingest
// events to Kafka for downstream indexing. It performs content-hash-based
// shard assignment and supports idempotent writes.
package publisher

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/corvid-systems/ftsengine/internal/analytics"
	"github.com/corvid-systems/ftsengine/internal/analytics/collector"
	"github.com/corvid-systems/ftsengine/internal/ingestion"
	apperrors "github.com/corvid-systems/ftsengine/pkg/errors"
	"github.com/corvid-systems/ftsengine/pkg/kafka"
	"github.com/corvid-systems/ftsengine/pkg/postgres"
	"github.com/corvid-systems/ftsengine/pkg/resilience"
)

// totalShards is the fixed number of index shards used for partitioning.
const totalShards = 8

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	db        *postgres.Client
	producer  *kafka.Producer
	analytics *collector.BatchCollector
	breaker   *resilience.CircuitBreaker
	logger    *slog.Logger
}

// New creates a Publisher with the given database and Kafka producer. A
// circuit breaker guards the Kafka publish step so a broker outage fails
// fast instead of piling up blocked ingestion requests.
func New(db *postgres.Client, producer *kafka.Producer) *Publisher {
	return &Publisher{
		db:       db,
		producer: producer,
		breaker:  resilience.NewCircuitBreaker("ingestion-kafka-publish", resilience.CircuitBreakerConfig{}),
		logger:   slog.Default().With("component", "publisher"),
	}
}

// AttachAnalytics wires a BatchCollector that records an IngestEvent for
// every document accepted. Not calling this leaves ingestion unreported to
// the analytics pipeline, which is fine for tests and single-run tooling.
func (p *Publisher) AttachAnalytics(bc *collector.BatchCollector) {
	p.analytics = bc
}

// Ingest persists the document in PostgreSQL, assigns a shard, and publishes
// an IngestEvent to Kafka. Duplicate idempotency keys are detected and
// returned without re-insertion.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	contentHash := fmt.Sprintf("%x", sha256.Sum256([]byte(req.Body)))
	if req.IdempotencyKey != "" {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.DocumentID,
			)
			return existing, nil
		}
	}

	shardID := assignShard(contentHash, totalShards)
	var docID string
	var raced bool
	insertErr := resilience.Retry(ctx, "insert-document", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		raced = false
		return p.db.InTx(ctx, func(tx *sql.Tx) error {
			err := tx.QueryRowContext(ctx,
				`INSERT INTO documents (title, content_hash, content_size, shard_id, idempotency_key, status)
			VALUES ($1, $2, $3, $4, $5, 'PENDING')
			ON CONFLICT (idempotency_key) DO NOTHING
			RETURNING id`, req.Title, contentHash, len(req.Body), shardID, nullableString(req.IdempotencyKey)).Scan(&docID)
			if err == sql.ErrNoRows {
				// Another request won the race on the same idempotency key
				// between our pre-check above and this insert. Not a
				// transient failure, so don't let Retry burn attempts on it.
				raced = true
				return nil
			}
			return err
		})
	})
	if insertErr != nil {
		return nil, fmt.Errorf("inserting document: %w", insertErr)
	}
	if raced {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("resolving idempotency race: %w", err)
		}
		if existing == nil {
			return nil, apperrors.New(apperrors.ErrIdempotencyConflict, 409, "idempotency key already in use")
		}
		return existing, nil
	}

	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: ingestion.IngestEvent{
			DocumentID: docID,
			Title:      req.Title,
			Body:       req.Body,
			ShardID:    shardID,
			IngestedAt: time.Now().UTC(),
		},
	}

	if err := p.breaker.Execute(func() error { return p.producer.Publish(ctx, event) }); err != nil {
		p.logger.Error("failed to publish to kafka, document stuck in PENDING",
			"doc_id", docID,
			"shard_id", shardID,
			"error", err,
		)
	}

	if p.analytics != nil {
		p.analytics.Track(strconv.Itoa(shardID), analytics.IngestEvent{
			Type:        analytics.EventDocIngested,
			DocumentID:  docID,
			ShardID:     shardID,
			ContentSize: len(req.Body),
			Timestamp:   time.Now().UTC(),
		})
	}

	return &ingestion.IngestResponse{
		DocumentID: docID,
		Status:     "PENDING",
		ShardID:    shardID,
	}, nil
}

// findByIdempotencyKey checks if a document with the given idempotency key
// already exists and returns its status.
func (p *Publisher) findByIdempotencyKey(ctx context.Context, key string) (*ingestion.IngestResponse, error) {
	var resp ingestion.IngestResponse
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT id, status, shard_id FROM documents WHERE idempotency_key=$1`, key).Scan(&resp.DocumentID, &resp.Status, &resp.ShardID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

// assignShard deterministically maps a content hash to a shard ID.
func assignShard(contentHash string, numShards int) int {
	var hash uint64
	for i := 0; i < 8 && i < len(contentHash); i++ {
		hash = hash<<8 | uint64(contentHash[i])
	}
	return int(hash % uint64(numShards))
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
