// Package common contains shared constants and sentinel errors used across
// filestore components.
package common

// AuthorizationHeaderName carries the bearer token on peer requests.
const AuthorizationHeaderName = "Authorization"

// Token scopes understood by the filestore API.
const (
	ScopeCommon = "file_management:common"
	ScopeAdmin  = "file_management:admin"
)

// Capabilities a shared-access entity may grant on stored files.
const (
	CapabilityDeleteArtefact = "delete_artefact"
	CapabilityReadArtefact   = "read_artefact"
)
