package entity

import (
	"time"
)

// Signer represents a known signatory in the signature gallery.
type Signer struct {
	UserID      string    `json:"user_id"`
	PrintedName string    `json:"printed_name"`
	SampleCount int       `json:"sample_count"`
	AutoAdded   bool      `json:"auto_added"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SignatureSample is one stored handwriting sample for a signer.
type SignatureSample struct {
	UserID      string    `json:"user_id"`
	SampleIndex int       `json:"sample_index"`
	Features    []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
