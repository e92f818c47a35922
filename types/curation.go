package types

import "time"

const (
	FlowPassive    = "passive"
	FlowActive     = "active"
	FlowScreenshot = "screenshot"
)

const (
	DedupTopic  = "topic"
	DedupAppend = "append"
)

// MaxDocumentsPerFlow bounds how many documents a single flow may write.
const MaxDocumentsPerFlow = 4

// CurationRun is the journal record of one completed flow.
type CurationRun struct {
	ID          string    `bson:"_id" json:"id"`
	Flow        string    `bson:"flow" json:"flow"`
	Input       string    `bson:"input" json:"input"`
	Topic       string    `bson:"topic" json:"topic"`
	Collection  string    `bson:"collection" json:"collection"`
	DocumentIDs []string  `bson:"document_ids" json:"document_ids"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Screenshot is a captured browser page.
type Screenshot struct {
	Image []byte
	// MimeType is detected from Image when empty.
	MimeType  string
	PageURL   string
	PageTitle string
}

// ScreenshotResult describes what was stored for a screenshot.
type ScreenshotResult struct {
	DocumentID       string `json:"document_id"`
	Filename         string `json:"filename"`
	ExtractedText    string `json:"extracted_text"`
	ImageDescription string `json:"image_description"`
	// CuratedIDs lists the documents the passive flow wrote from the page.
	CuratedIDs []string `json:"curated_ids,omitempty"`
}
