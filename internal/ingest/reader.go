// Package ingest loads the sentence and metadata parquet datasets, joins
// them and bulk-writes the result into the document store.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// Meta is one transcript-level metadata row keyed by sa_id. Rows with a
// null fiscal year or quarter never make it into the map, so a join miss
// and incomplete metadata look the same to the pipeline.
type Meta struct {
	Title  string
	Coname string
	FY     int
	Q      int
}

// SentenceRow is one raw sentence-dataset row before the metadata join.
type SentenceRow struct {
	SAID     int64
	RemarkID int64
	SentID   int64
	Section  string
	Speaker  string
	Role     string
	Text     string
}

// ReadMeta loads the metadata parquet into a map keyed by sa_id. Metadata
// is one row per transcript, so the map gives every sentence at most one
// match.
func ReadMeta(path string) (map[int64]Meta, error) {
	h, err := openParquet(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer h.Close()

	cols := resolveMetaColumns(h.pf)
	if cols.saID < 0 {
		return nil, fmt.Errorf("sa_id column not found in %s", filepath.Base(path))
	}

	meta := make(map[int64]Meta)

	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 1000)

		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				saID, m, ok := rowToMeta(buf[i], cols)
				if ok {
					meta[saID] = m
				}
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read metadata rows: %w", readErr)
			}
		}
	}

	return meta, nil
}

type metaColumns struct {
	saID   int
	title  int
	coname int
	fy     int
	q      int
}

func resolveMetaColumns(pf *parquet.File) metaColumns {
	cols := metaColumns{saID: -1, title: -1, coname: -1, fy: -1, q: -1}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "sa_id":
			cols.saID = i
		case "title":
			cols.title = i
		case "coname":
			cols.coname = i
		case "fy":
			cols.fy = i
		case "q":
			cols.q = i
		}
	}
	return cols
}

// rowToMeta extracts a metadata row; ok is false when sa_id, fy or q is
// missing and the row must be treated as absent.
func rowToMeta(row parquet.Row, cols metaColumns) (int64, Meta, bool) {
	var m Meta
	var saID int64
	haveSAID, haveFY, haveQ := false, false, false

	for _, v := range row {
		switch v.Column() {
		case cols.saID:
			if !v.IsNull() {
				saID = toInt64(v)
				haveSAID = true
			}
		case cols.title:
			if !v.IsNull() {
				m.Title = v.String()
			}
		case cols.coname:
			if !v.IsNull() {
				m.Coname = v.String()
			}
		case cols.fy:
			if !v.IsNull() {
				m.FY = int(toInt64(v))
				haveFY = true
			}
		case cols.q:
			if !v.IsNull() {
				m.Q = int(toInt64(v))
				haveQ = true
			}
		}
	}

	return saID, m, haveSAID && haveFY && haveQ
}

// ReadSentences streams the sentence parquet row by row into cb, stopping
// after maxRows rows (0 = unlimited) or when cb returns false. Returns the
// number of rows delivered.
func ReadSentences(path string, maxRows int, cb func(SentenceRow) bool) (int, error) {
	h, err := openParquet(path)
	if err != nil {
		return 0, fmt.Errorf("open sentences: %w", err)
	}
	defer h.Close()

	cols := resolveSentenceColumns(h.pf)
	if cols.saID < 0 || cols.text < 0 {
		return 0, fmt.Errorf("sa_id or text column not found in %s", filepath.Base(path))
	}

	read := 0

	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, 1000)

		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				if maxRows > 0 && read >= maxRows {
					return read, nil
				}
				if !cb(rowToSentence(buf[i], cols)) {
					return read, nil
				}
				read++
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return read, fmt.Errorf("read sentence rows: %w", readErr)
			}
		}
	}

	return read, nil
}

type sentenceColumns struct {
	saID     int
	remarkID int
	sentID   int
	section  int
	speaker  int
	role     int
	text     int
}

func resolveSentenceColumns(pf *parquet.File) sentenceColumns {
	cols := sentenceColumns{
		saID: -1, remarkID: -1, sentID: -1,
		section: -1, speaker: -1, role: -1, text: -1,
	}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		switch path[0] {
		case "sa_id":
			cols.saID = i
		case "remark_id":
			cols.remarkID = i
		case "sent_id":
			cols.sentID = i
		case "section":
			cols.section = i
		case "speaker":
			cols.speaker = i
		case "role":
			cols.role = i
		case "text":
			cols.text = i
		}
	}
	return cols
}

func rowToSentence(row parquet.Row, cols sentenceColumns) SentenceRow {
	var s SentenceRow
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case cols.saID:
			s.SAID = toInt64(v)
		case cols.remarkID:
			s.RemarkID = toInt64(v)
		case cols.sentID:
			s.SentID = toInt64(v)
		case cols.section:
			s.Section = v.String()
		case cols.speaker:
			s.Speaker = v.String()
		case cols.role:
			s.Role = v.String()
		case cols.text:
			s.Text = v.String()
		}
	}
	return s
}

// toInt64 coerces a numeric parquet value to int64 regardless of the
// physical type the writer chose.
func toInt64(v parquet.Value) int64 {
	switch v.Kind() {
	case parquet.Double:
		return int64(v.Double())
	case parquet.Float:
		return int64(v.Float())
	case parquet.Int32:
		return int64(v.Int32())
	default:
		return v.Int64()
	}
}

// parquetHandle wraps parquet.File + underlying os.File for proper cleanup.
type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}
