package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StoredFile describes one file currently present in exactly one bucket.
// (Filename, BucketID) is unique.
type StoredFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	BucketID string `json:"bucket_id"`
	// OwnerUserID is the exclusive primary owner.
	OwnerUserID string `json:"user_id"`
	// InterestID is a weak reference to a shared-access entity. Empty when unset.
	InterestID string   `json:"interest_id,omitempty"`
	FileInfo   FileInfo `json:"fileinfo"`
}

// FileInfo is the attribute document recorded for each stored file.
type FileInfo struct {
	Ext   string    `json:"ext"`
	Hash  FileHash  `json:"hash"`
	Props FileProps `json:"props"`
}

type FileHash struct {
	SHA256 string `json:"sha256"`
}

// FileProps carries store-reported attributes. Timestamps are nil when the
// byte store does not track them.
type FileProps struct {
	Size     int64      `json:"size"`
	Created  *time.Time `json:"created"`
	Modified *time.Time `json:"modified"`
}

// Value stores FileInfo as a JSON document.
func (f FileInfo) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan reads FileInfo from a JSON column.
func (f *FileInfo) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = FileInfo{}
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return errors.New("fileinfo: unsupported column type")
	}
}

// StoredFileView is the listing shape shared by local and remote buckets.
// Owner is the owner's public id and is only filled when requested.
type StoredFileView struct {
	Filename string   `json:"filename"`
	FileInfo FileInfo `json:"fileinfo"`
	Owner    string   `json:"owner,omitempty"`
}

// Pagination selects a window of an ordered listing.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Page is one window of a listing. Total counts all matching records.
type Page struct {
	Items  []StoredFileView `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}
