package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/callsight/callsight/internal/db"
	"github.com/callsight/callsight/internal/domain"
)

func testMeta() map[int64]Meta {
	return map[int64]Meta{
		100: {Title: "Acme Q3 2019 Call", Coname: "Acme Corp", FY: 2019, Q: 3},
		200: {Title: "Globex Q1 2020 Call", Coname: "Globex", FY: 2020, Q: 1},
	}
}

func testRows() []SentenceRow {
	rows := make([]SentenceRow, 0, 12)
	for i := int64(0); i < 7; i++ {
		saID := int64(100)
		if i >= 4 {
			saID = 200
		}
		rows = append(rows, SentenceRow{
			SAID: saID, RemarkID: i, SentID: 1,
			Section: "Q&A", Speaker: "John Doe", Role: "Firm",
			Text: "revenue grew this quarter",
		})
	}
	// 5 orphan rows: sa_id 999 has no metadata
	for i := int64(0); i < 5; i++ {
		rows = append(rows, SentenceRow{
			SAID: 999, RemarkID: i, SentID: 1,
			Section: "Q&A", Speaker: "Jane Roe", Role: "Firm",
			Text: "orphaned sentence",
		})
	}
	return rows
}

func TestRun_JoinDropsOrphans(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{BatchSize: 3})

	var written []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		written = append(written, items...)
		return nil
	}

	stats, err := p.run(context.Background(), testMeta(), sliceSource(testRows()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Read != 12 {
		t.Errorf("expected 12 read, got %d", stats.Read)
	}
	if stats.Dropped != 5 {
		t.Errorf("expected 5 dropped, got %d", stats.Dropped)
	}
	if stats.Written != 7 {
		t.Errorf("expected 7 written, got %d", stats.Written)
	}
	// 7 records at batch size 3: two full batches plus the remainder
	if stats.Batches != 3 {
		t.Errorf("expected 3 batches, got %d", stats.Batches)
	}
	if len(written) != 7 {
		t.Fatalf("expected 7 items written, got %d", len(written))
	}
}

func TestRun_EmbedderWithoutBatchSupport(t *testing.T) {
	ms := &mockStore{}
	var texts []string
	se := &singleEmbedder{
		embedFn: func(_ context.Context, text string) (domain.EmbeddingResult, error) {
			texts = append(texts, text)
			return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 1}, nil
		},
	}
	p := New(ms, se, Config{Collection: "sentences", BatchSize: 3}, zap.NewNop())

	var written []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		written = append(written, items...)
		return nil
	}

	stats, err := p.run(context.Background(), testMeta(), sliceSource(testRows()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Written != 7 {
		t.Errorf("expected 7 written, got %d", stats.Written)
	}
	// One Embed call per joined record, none for orphans.
	if len(texts) != 7 {
		t.Errorf("expected 7 per-text embed calls, got %d", len(texts))
	}
	for _, item := range written {
		if len(item.Fields["__vector"]) != 12 {
			t.Errorf("expected 3-dim vector bytes, got %d", len(item.Fields["__vector"]))
		}
	}
}

func TestRun_RecordFields(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{BatchSize: 10})

	var items []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, got []db.HashSetItem) error {
		items = got
		return nil
	}

	rows := []SentenceRow{{
		SAID: 100, RemarkID: 7, SentID: 2,
		Section: "Q&A", Speaker: "John Doe", Role: "Firm",
		Text: "margins expanded",
	}}
	if _, err := p.run(context.Background(), testMeta(), sliceSource(rows)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Key != "callsight:sentences:100_7_2" {
		t.Errorf("unexpected key: %s", item.Key)
	}
	want := map[string]string{
		"doc_id":  "100_7_2",
		"sa_id":   "100",
		"title":   "Acme Q3 2019 Call",
		"coname":  "Acme Corp",
		"fy":      "2019",
		"q":       "3",
		"section": "Q&A",
		"speaker": "John Doe",
		"role":    "Firm",
		"text":    "margins expanded",
	}
	for k, v := range want {
		if item.Fields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, item.Fields[k])
		}
	}
	// 3-dim test embedding = 12 bytes
	if len(item.Fields["__vector"]) != 12 {
		t.Errorf("expected 12 vector bytes, got %d", len(item.Fields["__vector"]))
	}
}

func TestRun_MaxRecordsCapCountsJoinedRows(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{BatchSize: 2, MaxRecords: 4})

	var written int
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		written += len(items)
		return nil
	}

	// Interleave orphans so the cap must ignore dropped rows.
	rows := []SentenceRow{
		{SAID: 100, RemarkID: 1, SentID: 1, Text: "a"},
		{SAID: 999, RemarkID: 2, SentID: 1, Text: "orphan"},
		{SAID: 100, RemarkID: 3, SentID: 1, Text: "b"},
		{SAID: 999, RemarkID: 4, SentID: 1, Text: "orphan"},
		{SAID: 100, RemarkID: 5, SentID: 1, Text: "c"},
		{SAID: 100, RemarkID: 6, SentID: 1, Text: "d"},
		{SAID: 100, RemarkID: 7, SentID: 1, Text: "e"},
	}

	stats, err := p.run(context.Background(), testMeta(), sliceSource(rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Written != 4 {
		t.Errorf("expected 4 written, got %d", stats.Written)
	}
	if written != 4 {
		t.Errorf("expected 4 items at the store, got %d", written)
	}
}

func TestRun_FailedBatchAborts(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{BatchSize: 2})

	calls := 0
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		calls++
		if calls == 2 {
			return errors.New("connection reset")
		}
		return nil
	}

	rows := make([]SentenceRow, 6)
	for i := range rows {
		rows[i] = SentenceRow{SAID: 100, RemarkID: int64(i), SentID: 1, Text: "t"}
	}

	stats, err := p.run(context.Background(), testMeta(), sliceSource(rows))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "batch 2") {
		t.Errorf("expected batch 2 in error, got: %v", err)
	}
	// first batch stays written, nothing is rolled back
	if stats.Written != 2 {
		t.Errorf("expected 2 written before failure, got %d", stats.Written)
	}
	if calls != 2 {
		t.Errorf("expected 2 store calls, got %d", calls)
	}
}

func TestRun_EmbedderError(t *testing.T) {
	p, ms, me := newTestPipeline(t, Config{BatchSize: 2})

	me.batchEmbedFn = func(_ context.Context, _ []string) (domain.BatchEmbeddingResult, error) {
		return domain.BatchEmbeddingResult{}, domain.ErrEmbeddingProviderError
	}
	storeCalled := false
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		storeCalled = true
		return nil
	}

	rows := []SentenceRow{
		{SAID: 100, RemarkID: 1, SentID: 1, Text: "a"},
		{SAID: 100, RemarkID: 2, SentID: 1, Text: "b"},
	}
	_, err := p.run(context.Background(), testMeta(), sliceSource(rows))
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected embedding provider error, got %v", err)
	}
	if storeCalled {
		t.Error("store must not be called when embedding fails")
	}
}

func TestRun_EmbeddingCountMismatch(t *testing.T) {
	p, _, me := newTestPipeline(t, Config{BatchSize: 2})

	me.batchEmbedFn = func(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
		return domain.BatchEmbeddingResult{Embeddings: [][]float32{{0.1}}}, nil
	}

	rows := []SentenceRow{
		{SAID: 100, RemarkID: 1, SentID: 1, Text: "a"},
		{SAID: 100, RemarkID: 2, SentID: 1, Text: "b"},
	}
	if _, err := p.run(context.Background(), testMeta(), sliceSource(rows)); err == nil {
		t.Fatal("expected error on vector count mismatch")
	}
}

func TestVerify(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{})

	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "callsight:sentences:idx" || query != "*" {
			t.Errorf("unexpected count query: %s %s", index, query)
		}
		return 7, nil
	}
	ms.searchListFn = func(
		_ context.Context, _, _ string, offset, limit int, fields []string,
	) (*db.SearchResult, error) {
		if offset != 0 || limit != 1 {
			t.Errorf("expected LIMIT 0 1, got %d %d", offset, limit)
		}
		return &db.SearchResult{
			Total: 7,
			Entries: []db.SearchEntry{{
				Key: "callsight:sentences:100_1_1",
				// 3-dim vector = 12 bytes
				Fields: map[string]string{"__vector": string(make([]byte, 12))},
			}},
		}, nil
	}

	report, err := p.Verify(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Count != 7 {
		t.Errorf("expected count 7, got %d", report.Count)
	}
	if report.VectorDim != 3 {
		t.Errorf("expected dim 3, got %d", report.VectorDim)
	}
	if report.VectorBytes != 7*3*4 {
		t.Errorf("unexpected vector bytes estimate: %d", report.VectorBytes)
	}
	if report.GraphBytes != 7*64*8 {
		t.Errorf("unexpected graph bytes estimate: %d", report.GraphBytes)
	}
}

func TestVerify_EmptyIndex(t *testing.T) {
	p, ms, _ := newTestPipeline(t, Config{})

	listCalled := false
	ms.searchListFn = func(
		_ context.Context, _, _ string, _, _ int, _ []string,
	) (*db.SearchResult, error) {
		listCalled = true
		return &db.SearchResult{}, nil
	}

	report, err := p.Verify(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Count != 0 || report.VectorDim != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if listCalled {
		t.Error("should not probe a vector on an empty index")
	}
}
