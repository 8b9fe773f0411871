package auth

import (
	"time"

	"github.com/google/uuid"
)

// Account is a local or federated (remote) user owning drive files.
type Account struct {
	ID       uuid.UUID
	Username string
	// Host is nil for local accounts and the origin instance for remote ones.
	Host      *string
	AvatarID  *uuid.UUID
	BannerID  *uuid.UUID
	CreatedAt time.Time
}

// IsLocal reports whether the account belongs to this instance.
func (a Account) IsLocal() bool {
	return a.Host == nil
}

// IsRemote reports whether the account was federated from another instance.
func (a Account) IsRemote() bool {
	return a.Host != nil
}

// ProtectedFileIDs lists files that must never be evicted (avatar, banner).
func (a Account) ProtectedFileIDs() []uuid.UUID {
	var ids []uuid.UUID
	if a.AvatarID != nil {
		ids = append(ids, *a.AvatarID)
	}
	if a.BannerID != nil {
		ids = append(ids, *a.BannerID)
	}
	return ids
}

// Profile carries per-account drive preferences.
type Profile struct {
	AccountID      uuid.UUID
	AlwaysMarkNSFW bool
}
