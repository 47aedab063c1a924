package models

import (
	"time"
)

// DownloadedDocument records a completed document fetch. Created once per
// successful download and immutable thereafter.
type DownloadedDocument struct {
	DocumentID  string    `json:"document_id"`
	CaseID      string    `json:"case_id"`
	Court       string    `json:"court,omitempty"`
	StoragePath string    `json:"storage_path,omitempty"`
	Size        int64     `json:"size"`
	PageCount   int       `json:"page_count"`
	Checksum    string    `json:"checksum"`
	Cost        float64   `json:"cost"`
	FetchedAt   time.Time `json:"fetched_at"`
}
