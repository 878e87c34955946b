// Package models defines server-side data models persisted in the metadata
// database and exchanged with peer filestore components.
package models

// Bucket is the persisted record of a named filestore bucket. Policy fields
// come from configuration and are not stored.
type Bucket struct {
	ID   string
	Name string
}

// BucketPolicy is the read-only configuration a bucket is served with.
type BucketPolicy struct {
	// StorageURI locates the byte store, e.g. "osfs:///var/lib/filestore/incoming".
	StorageURI string
	// ExposeURI is the prefix internal-redirect paths are built from.
	ExposeURI string
	// AcceptExt lists the extensions (with leading dot) the API layer accepts.
	AcceptExt      []string
	AllowDelete    bool
	AllowOverwrite bool
}
