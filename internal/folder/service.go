package folder

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 200

type repository interface {
	Create(ctx context.Context, f Folder) (Folder, error)
	List(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) ([]Folder, error)
	Get(ctx context.Context, ownerID, folderID uuid.UUID) (Folder, error)
}

// Service orchestrates folder operations.
type Service struct {
	repo    repository
	nowFunc func() time.Time
}

// NewService constructs a folder service.
func NewService(repo repository) *Service {
	return &Service{repo: repo, nowFunc: time.Now}
}

// CreateFolder creates a folder, verifying the parent belongs to the same owner.
func (s *Service) CreateFolder(ctx context.Context, ownerID uuid.UUID, name string, parentID *uuid.UUID) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return Folder{}, ErrInvalidName
	}
	if parentID != nil {
		if _, err := s.repo.Get(ctx, ownerID, *parentID); err != nil {
			return Folder{}, err
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Folder{}, err
	}
	return s.repo.Create(ctx, Folder{
		ID:        id,
		OwnerID:   ownerID,
		ParentID:  parentID,
		Name:      name,
		CreatedAt: s.nowFunc().UTC(),
	})
}

// ListFolders returns the owner's folders under parentID.
func (s *Service) ListFolders(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) ([]Folder, error) {
	return s.repo.List(ctx, ownerID, parentID)
}

// GetFolder returns a folder only if ownerID owns it.
func (s *Service) GetFolder(ctx context.Context, ownerID, folderID uuid.UUID) (Folder, error) {
	return s.repo.Get(ctx, ownerID, folderID)
}
