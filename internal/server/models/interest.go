package models

// Interest is a shared-access entity stored files may point at.
type Interest struct {
	ID   string
	Type string
	Name string
}

// InterestGrant gives UserID a named capability through an interest.
type InterestGrant struct {
	InterestID string
	UserID     string
	Capability string
}
