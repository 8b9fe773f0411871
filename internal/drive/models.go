package drive

import (
	"time"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/google/uuid"
)

// Properties are intrinsic media attributes found while probing.
type Properties struct {
	Width    *int    `json:"width,omitempty"`
	Height   *int    `json:"height,omitempty"`
	AvgColor *string `json:"avgColor,omitempty"`
}

// File is the persisted record of one stored drive artifact.
type File struct {
	ID        uuid.UUID
	CreatedAt time.Time
	// AccountID is nil for system-owned files.
	AccountID   *uuid.UUID
	AccountHost *string
	FolderID    *uuid.UUID

	Name        string
	Type        string
	MD5         string
	Size        int64
	Comment     *string
	Properties  Properties
	IsSensitive bool

	IsLink         bool
	StoredInternal bool
	URL            string
	ThumbnailURL   *string
	// AccessKey locates the bytes in the backend; nil for link-mode files.
	AccessKey          *string
	ThumbnailAccessKey *string

	// Src is the URL the content was fetched from, URI its remote identity.
	Src *string
	URI *string
}

// OwnedBySystem reports whether no account owns the file.
func (f File) OwnedBySystem() bool {
	return f.AccountID == nil
}

// RegisterInput carries the arguments of a registration.
type RegisterInput struct {
	// Account is nil for system-owned ingestion.
	Account *auth.Account
	Path    string
	// Name overrides the detected display name when non-empty.
	Name     string
	Comment  *string
	FolderID *uuid.UUID
	// Force skips deduplication.
	Force bool
	// IsLink records a reference to URL without copying bytes.
	IsLink    bool
	URL       *string
	URI       *string
	Sensitive *bool
}

func (in RegisterInput) ownerID() *uuid.UUID {
	if in.Account == nil {
		return nil
	}
	id := in.Account.ID
	return &id
}

// Packed is the client-facing view of a File.
type Packed struct {
	ID           uuid.UUID  `json:"id"`
	CreatedAt    time.Time  `json:"createdAt"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	MD5          string     `json:"md5"`
	Size         int64      `json:"size"`
	IsSensitive  bool       `json:"isSensitive"`
	Properties   Properties `json:"properties"`
	URL          string     `json:"url"`
	ThumbnailURL *string    `json:"thumbnailUrl"`
	Comment      *string    `json:"comment"`
	FolderID     *uuid.UUID `json:"folderId"`
	UserID       *uuid.UUID `json:"userId"`
}

// Pack renders f for stream events and API responses.
func Pack(f File) Packed {
	return Packed{
		ID:           f.ID,
		CreatedAt:    f.CreatedAt,
		Name:         f.Name,
		Type:         f.Type,
		MD5:          f.MD5,
		Size:         f.Size,
		IsSensitive:  f.IsSensitive,
		Properties:   f.Properties,
		URL:          f.URL,
		ThumbnailURL: f.ThumbnailURL,
		Comment:      f.Comment,
		FolderID:     f.FolderID,
		UserID:       f.AccountID,
	}
}
