// Package sentence defines the atomic indexed unit: one transcript sentence
// joined with its transcript-level metadata.
package sentence

import "fmt"

// Indexed field names. The schema, the ingestion pipeline and the search
// queries all refer to fields by these names; changing any of them requires
// destroying and re-ingesting the collection.
const (
	FieldDocID   = "doc_id"
	FieldSAID    = "sa_id"
	FieldTitle   = "title"
	FieldConame  = "coname"
	FieldFY      = "fy"
	FieldQ       = "q"
	FieldSection = "section"
	FieldSpeaker = "speaker"
	FieldRole    = "role"
	FieldText    = "text"

	// FieldVector holds the embedding of FieldText as little-endian
	// float32 bytes. Never returned to callers.
	FieldVector = "__vector"
)

// Enum-like values the query engine filters on.
const (
	RoleFirm  = "Firm"
	SectionQA = "Q&A"
)

// Record is one sentence of an earnings-call transcript with denormalized
// transcript metadata. Records are written once by the ingestion pipeline
// and never updated in place.
type Record struct {
	DocID   string // composite key, unique and stable across re-ingestion
	SAID    int64  // source transcript id
	Title   string
	Coname  string
	FY      int
	Q       int
	Section string
	Speaker string
	Role    string
	Text    string
}

// DocID derives the composite identity key from the source row ids.
func DocID(saID, remarkID, sentID int64) string {
	return fmt.Sprintf("%d_%d_%d", saID, remarkID, sentID)
}

// Validate checks the invariants every persisted record must satisfy.
func (r *Record) Validate() error {
	if r.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	if r.FY == 0 || r.Q == 0 {
		return fmt.Errorf("record %s: fy and q are required", r.DocID)
	}
	if r.Text == "" {
		return fmt.Errorf("record %s: text is required", r.DocID)
	}
	return nil
}
