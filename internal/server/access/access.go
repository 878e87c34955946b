// Package access evaluates per-file capabilities: the recorded owner may
// always act on a file, and a shared-access entity ("interest") attached to
// the file may extend named capabilities to other users.
package access

import (
	"context"

	"github.com/dmitrijs2005/filestore/internal/common"
)

// Interest is a shared-access entity resolved for the duration of one request.
type Interest interface {
	CheckUserAccess(ctx context.Context, puid, capability string) (bool, error)
}

// Owner is the ownership record of a stored file.
type Owner struct {
	UserID string
	// PUID is the owner's public id; requesters are compared against it.
	PUID string
	// Interest is nil when the file carries no shared-access reference.
	Interest Interest
}

// CanOverwriteOrDelete reports whether puid may replace or remove the file.
func CanOverwriteOrDelete(ctx context.Context, owner *Owner, puid string) (bool, error) {
	return check(ctx, owner, puid, common.CapabilityDeleteArtefact)
}

// CanRead reports whether puid may read the file through an exposed location.
func CanRead(ctx context.Context, owner *Owner, puid string) (bool, error) {
	return check(ctx, owner, puid, common.CapabilityReadArtefact)
}

func check(ctx context.Context, owner *Owner, puid, capability string) (bool, error) {
	if owner == nil {
		return false, nil
	}
	if owner.PUID != "" && owner.PUID == puid {
		return true, nil
	}
	if owner.Interest == nil {
		return false, nil
	}
	return owner.Interest.CheckUserAccess(ctx, puid, capability)
}
