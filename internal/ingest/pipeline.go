package ingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
	"github.com/callsight/callsight/internal/domain/sentence"
	"github.com/callsight/callsight/internal/metrics"
	"github.com/callsight/callsight/internal/schema"
)

// store is the consumer interface for the pipeline (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds pipeline parameters.
type Config struct {
	Collection string
	BatchSize  int
	MaxRecords int // 0 = unlimited
}

// Stats reports what one ingestion run did.
type Stats struct {
	Read    int // sentence rows consumed from the dataset
	Dropped int // rows with no complete metadata match, silently filtered
	Written int // records persisted
	Batches int // bulk-write round-trips
}

// Pipeline joins sentence rows with transcript metadata, embeds the text
// and bulk-writes the records batch by batch. Batches are sequential and
// awaited; a failed batch aborts the run without rolling back earlier
// ones. A crashed run is restarted from scratch after re-applying the
// schema, there is no resume.
type Pipeline struct {
	store    store
	embedder domain.Embedder
	cfg      Config
	log      *zap.Logger
}

// New creates an ingestion pipeline. Providers implementing
// domain.BatchEmbedder get one API call per batch; others are embedded
// text by text.
func New(s store, e domain.Embedder, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Pipeline{store: s, embedder: e, cfg: cfg, log: log}
}

// rowSource streams sentence rows into cb, honoring the maxRows cap.
type rowSource func(maxRows int, cb func(SentenceRow) bool) (int, error)

// Run reads both datasets and ingests the joined records.
func (p *Pipeline) Run(ctx context.Context, sentencesPath, metaPath string) (Stats, error) {
	meta, err := ReadMeta(metaPath)
	if err != nil {
		return Stats{}, fmt.Errorf("read metadata: %w", err)
	}
	p.log.Info("metadata loaded", zap.Int("transcripts", len(meta)))

	src := func(maxRows int, cb func(SentenceRow) bool) (int, error) {
		return ReadSentences(sentencesPath, maxRows, cb)
	}

	return p.run(ctx, meta, src)
}

func (p *Pipeline) run(ctx context.Context, meta map[int64]Meta, src rowSource) (Stats, error) {
	var stats Stats
	var runErr error
	batch := make([]sentence.Record, 0, p.cfg.BatchSize)

	// The cap counts joined records, not raw rows: dropped rows do not
	// consume budget.
	read, err := src(0, func(row SentenceRow) bool {
		if p.cfg.MaxRecords > 0 && stats.Written+len(batch) >= p.cfg.MaxRecords {
			return false
		}

		m, ok := meta[row.SAID]
		if !ok {
			stats.Dropped++
			metrics.IngestRecordsTotal.WithLabelValues("dropped").Inc()
			return true
		}

		batch = append(batch, sentence.Record{
			DocID:   sentence.DocID(row.SAID, row.RemarkID, row.SentID),
			SAID:    row.SAID,
			Title:   m.Title,
			Coname:  m.Coname,
			FY:      m.FY,
			Q:       m.Q,
			Section: row.Section,
			Speaker: row.Speaker,
			Role:    row.Role,
			Text:    row.Text,
		})

		if len(batch) == p.cfg.BatchSize {
			if runErr = p.flush(ctx, batch, &stats); runErr != nil {
				return false
			}
			batch = batch[:0]
		}
		return true
	})
	stats.Read = read
	if err != nil {
		return stats, fmt.Errorf("read sentences: %w", err)
	}
	if runErr != nil {
		return stats, runErr
	}

	if len(batch) > 0 {
		if err := p.flush(ctx, batch, &stats); err != nil {
			return stats, err
		}
	}

	p.log.Info("ingestion finished",
		zap.Int("read", stats.Read),
		zap.Int("dropped", stats.Dropped),
		zap.Int("written", stats.Written),
		zap.Int("batches", stats.Batches),
	)
	return stats, nil
}

// flush embeds one batch and writes it in a single pipelined round-trip.
func (p *Pipeline) flush(ctx context.Context, batch []sentence.Record, stats *Stats) error {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.Text
	}

	emb, err := p.embedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch %d: %w", stats.Batches+1, err)
	}
	if len(emb.Embeddings) != len(batch) {
		return fmt.Errorf("embed batch %d: got %d vectors for %d texts",
			stats.Batches+1, len(emb.Embeddings), len(batch))
	}

	prefix := schema.CollectionPrefix(p.cfg.Collection)
	items := make([]db.HashSetItem, len(batch))
	for i, r := range batch {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("batch %d: %w", stats.Batches+1, err)
		}
		items[i] = db.HashSetItem{
			Key:    prefix + r.DocID,
			Fields: recordToHash(r, emb.Embeddings[i]),
		}
	}

	if err := p.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("write batch %d: %w", stats.Batches+1, err)
	}

	stats.Written += len(batch)
	stats.Batches++
	metrics.IngestRecordsTotal.WithLabelValues("written").Add(float64(len(batch)))
	metrics.IngestBatchesTotal.Inc()
	p.log.Debug("batch written",
		zap.Int("batch", stats.Batches),
		zap.Int("size", len(batch)),
		zap.Int("tokens", emb.TotalTokens),
	)
	return nil
}

// embedBatch uses the provider's batch call when it has one, otherwise
// falls back to embedding text by text.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // wrapped by the caller with batch context
	}
	return domain.BatchFallback(ctx, p.embedder, texts)
}

// recordToHash flattens a record into hash fields. Every declared field is
// present on every record; the store never sees a partial schema.
func recordToHash(r sentence.Record, vec []float32) map[string]string {
	return map[string]string{
		sentence.FieldDocID:   r.DocID,
		sentence.FieldSAID:    strconv.FormatInt(r.SAID, 10),
		sentence.FieldTitle:   r.Title,
		sentence.FieldConame:  r.Coname,
		sentence.FieldFY:      strconv.Itoa(r.FY),
		sentence.FieldQ:       strconv.Itoa(r.Q),
		sentence.FieldSection: r.Section,
		sentence.FieldSpeaker: r.Speaker,
		sentence.FieldRole:    r.Role,
		sentence.FieldText:    r.Text,
		sentence.FieldVector:  vectorToBytes(vec),
	}
}

// vectorToBytes serializes a vector as little-endian float32 bytes.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// VerifyReport is the post-ingestion sanity check: record count, stored
// vector dimensionality and derived on-disk size estimates. Observational
// only, it never fails a correct run.
type VerifyReport struct {
	Count       int
	VectorDim   int
	VectorBytes int64 // count * dim * 4
	GraphBytes  int64 // count * 64 * 8, HNSW link storage estimate
}

// Verify counts the indexed records and probes one stored vector for its
// dimensionality.
func (p *Pipeline) Verify(ctx context.Context) (VerifyReport, error) {
	idx := schema.IndexName(p.cfg.Collection)

	count, err := p.store.SearchCount(ctx, idx, "*")
	if err != nil {
		return VerifyReport{}, fmt.Errorf("count records: %w", err)
	}

	report := VerifyReport{Count: count}

	if count > 0 {
		sr, err := p.store.SearchList(ctx, idx, "*", 0, 1, []string{sentence.FieldVector})
		if err != nil {
			return report, fmt.Errorf("probe vector: %w", err)
		}
		if len(sr.Entries) > 0 {
			report.VectorDim = len(sr.Entries[0].Fields[sentence.FieldVector]) / 4
		}
	}

	report.VectorBytes = int64(report.Count) * int64(report.VectorDim) * 4
	report.GraphBytes = int64(report.Count) * 64 * 8

	p.log.Info("ingestion verified",
		zap.Int("count", report.Count),
		zap.Int("vector_dim", report.VectorDim),
		zap.Int64("vector_bytes_estimate", report.VectorBytes),
		zap.Int64("graph_bytes_estimate", report.GraphBytes),
	)
	return report, nil
}
