package models

import "time"

// User maps a public user id (PUID) issued by the identity provider to the
// internal id stored-file ownership refers to.
type User struct {
	ID        string
	PUID      string
	CreatedAt time.Time
}
