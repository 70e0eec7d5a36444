package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document kinds stored on archive rows.
const (
	KindInvoice = "invoice"
	KindDrawing = "drawing"
)

// ExtractionRecord represents one archived extraction run.
type ExtractionRecord struct {
	ID           uuid.UUID       `json:"id"`
	SourcePath   string          `json:"source_path"`
	Kind         string          `json:"kind"`
	FieldsJSON   json.RawMessage `json:"fields_json,omitempty"`
	Confidence   *float64        `json:"confidence,omitempty"`
	Method       string          `json:"method"`
	OCRChars     int             `json:"ocr_chars"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Fields decodes FieldsJSON into the extraction field map.
// Values are nil when a field was requested but not found.
func (r *ExtractionRecord) Fields() (map[string]*string, error) {
	fields := make(map[string]*string)
	if len(r.FieldsJSON) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(r.FieldsJSON, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
