package drive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/blobstore"
	"github.com/abduss/driveingest/internal/fileinfo"
	"github.com/abduss/driveingest/internal/folder"
	"github.com/abduss/driveingest/internal/stats"
	"github.com/abduss/driveingest/internal/thumbnail"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultListLimit = 30
	maxListLimit     = 100
	enqueueTimeout   = 5 * time.Second
)

var nameExtPattern = regexp.MustCompile(`\.([a-zA-Z0-9_-]+)$`)

type metadataStore interface {
	usageStore
	Create(ctx context.Context, f File) (File, error)
	FindByHash(ctx context.Context, md5 string, ownerID *uuid.UUID) (File, error)
	FindByURI(ctx context.Context, uri string, ownerID *uuid.UUID) (File, error)
	OldestEvictable(ctx context.Context, accountID uuid.UUID, exclude []uuid.UUID) (File, error)
	Get(ctx context.Context, id uuid.UUID) (File, error)
	List(ctx context.Context, ownerID uuid.UUID, folderID *uuid.UUID, limit int) ([]File, error)
	Delete(ctx context.Context, id uuid.UUID) (File, error)
}

type prober interface {
	Probe(ctx context.Context, path string) (fileinfo.Info, error)
}

type thumbnailer interface {
	Generate(ctx context.Context, path, mediaType string) *thumbnail.Thumbnail
}

type folderStore interface {
	GetFolder(ctx context.Context, ownerID, folderID uuid.UUID) (folder.Folder, error)
}

type profileStore interface {
	Profile(ctx context.Context, accountID uuid.UUID) (auth.Profile, error)
}

// Notifier publishes per-account stream events.
type Notifier interface {
	PublishMainStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error
	PublishDriveStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error
}

// Accounting applies usage counter changes.
type Accounting interface {
	Record(ctx context.Context, c stats.Change) error
}

// Queue runs background work after the caller has its answer.
type Queue interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Dependencies wires the collaborators of a Service.
type Dependencies struct {
	Log        *zap.Logger
	Files      metadataStore
	Folders    folderStore
	Profiles   profileStore
	Prober     prober
	Thumbnails thumbnailer
	Backend    blobstore.Backend
	Quota      *QuotaPolicy
	Notifier   Notifier
	Accounting Accounting
	Queue      Queue
}

// Service registers, lists and deletes drive files.
type Service struct {
	log        *zap.Logger
	files      metadataStore
	folders    folderStore
	profiles   profileStore
	prober     prober
	thumbnails thumbnailer
	backend    blobstore.Backend
	quota      *QuotaPolicy
	notifier   Notifier
	accounting Accounting
	queue      Queue
	now        func() time.Time
}

// NewService constructs a drive service.
func NewService(deps Dependencies) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:        log.Named("drive"),
		files:      deps.Files,
		folders:    deps.Folders,
		profiles:   deps.Profiles,
		prober:     deps.Prober,
		thumbnails: deps.Thumbnails,
		backend:    deps.Backend,
		quota:      deps.Quota,
		notifier:   deps.Notifier,
		accounting: deps.Accounting,
		queue:      deps.Queue,
		now:        time.Now,
	}
}

// Register ingests the file at in.Path and returns its persisted record.
// An identical file already held in the owner's scope is returned as is
// unless in.Force is set.
func (s *Service) Register(ctx context.Context, in RegisterInput) (File, error) {
	info, err := s.prober.Probe(ctx, in.Path)
	if err != nil {
		registrationsTotal.WithLabelValues("failed").Inc()
		return File{}, err
	}
	// Past probing the registration runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	owner := in.ownerID()
	if !in.Force {
		existing, found, err := s.findExisting(ctx, in, info, owner)
		if err != nil {
			registrationsTotal.WithLabelValues("failed").Inc()
			return File{}, err
		}
		if found {
			registrationsTotal.WithLabelValues("duplicate").Inc()
			return existing, nil
		}
	}

	var victim *File
	if in.Account != nil && !in.IsLink {
		victim, err = s.enforceQuota(ctx, *in.Account, info.Size)
		if err != nil {
			registrationsTotal.WithLabelValues("failed").Inc()
			return File{}, err
		}
	}

	folderID, err := s.resolveFolder(ctx, in.Account, in.FolderID)
	if err != nil {
		registrationsTotal.WithLabelValues("failed").Inc()
		return File{}, err
	}

	sensitive, err := s.resolveSensitivity(ctx, in.Account, in.Sensitive)
	if err != nil {
		registrationsTotal.WithLabelValues("failed").Inc()
		return File{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return File{}, fmt.Errorf("generate file id: %w", err)
	}

	file := File{
		ID:          id,
		CreatedAt:   s.now().UTC(),
		AccountID:   owner,
		FolderID:    folderID,
		Name:        detectName(in.Name, info.Type.Ext),
		Type:        info.Type.Mime,
		MD5:         info.MD5,
		Size:        info.Size,
		Comment:     in.Comment,
		Properties:  propertiesOf(info),
		IsSensitive: sensitive,
		Src:         in.URL,
		URI:         in.URI,
	}
	if in.Account != nil {
		file.AccountHost = in.Account.Host
	}

	var stored File
	if in.IsLink {
		var raced bool
		stored, raced, err = s.commitLink(ctx, file, in.URL, owner)
		if err != nil {
			registrationsTotal.WithLabelValues("failed").Inc()
			return File{}, err
		}
		if raced {
			registrationsTotal.WithLabelValues("link_race").Inc()
			return stored, nil
		}
	} else {
		stored, err = s.storeAndCommit(ctx, file, in.Path)
		if err != nil {
			registrationsTotal.WithLabelValues("failed").Inc()
			return File{}, err
		}
	}

	registrationsTotal.WithLabelValues("created").Inc()
	if victim != nil {
		s.scheduleEviction(ctx, *victim)
	}
	s.announce(ctx, stored)
	return stored, nil
}

func (s *Service) findExisting(ctx context.Context, in RegisterInput, info fileinfo.Info, owner *uuid.UUID) (File, bool, error) {
	var (
		existing File
		err      error
	)
	if in.IsLink {
		if in.URI == nil {
			return File{}, false, nil
		}
		existing, err = s.files.FindByURI(ctx, *in.URI, owner)
	} else {
		existing, err = s.files.FindByHash(ctx, info.MD5, owner)
	}
	switch {
	case err == nil:
		s.log.Debug("file already registered", zap.String("file_id", existing.ID.String()))
		return existing, true, nil
	case errors.Is(err, ErrFileNotFound):
		return File{}, false, nil
	default:
		return File{}, false, err
	}
}

// enforceQuota rejects full local accounts. For a full remote account it
// returns the file to evict once the new record is committed; the victim is
// chosen here so it can never be the file being registered.
func (s *Service) enforceQuota(ctx context.Context, account auth.Account, size int64) (*File, error) {
	decision, err := s.quota.Check(ctx, account, size)
	if err != nil {
		return nil, err
	}
	switch decision {
	case QuotaReject:
		return nil, ErrQuotaExceeded
	case QuotaEvict:
		victim, err := s.files.OldestEvictable(ctx, account.ID, account.ProtectedFileIDs())
		if err != nil {
			if !errors.Is(err, ErrFileNotFound) {
				s.log.Warn("select file to evict",
					zap.String("account_id", account.ID.String()),
					zap.Error(err),
				)
			}
			return nil, nil
		}
		return &victim, nil
	}
	return nil, nil
}

func (s *Service) scheduleEviction(ctx context.Context, victim File) {
	evictionsTotal.Inc()
	s.submit(ctx, "drive.evict", func(ctx context.Context) error {
		s.log.Info("evicting file to free quota",
			zap.String("file_id", victim.ID.String()),
			zap.Int64("size", victim.Size),
		)
		return s.Delete(ctx, victim)
	})
}

func (s *Service) resolveFolder(ctx context.Context, account *auth.Account, folderID *uuid.UUID) (*uuid.UUID, error) {
	if folderID == nil {
		return nil, nil
	}
	if account == nil {
		return nil, ErrFolderNotFound
	}
	f, err := s.folders.GetFolder(ctx, account.ID, *folderID)
	if err != nil {
		if errors.Is(err, folder.ErrFolderNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return &f.ID, nil
}

func (s *Service) resolveSensitivity(ctx context.Context, account *auth.Account, explicit *bool) (bool, error) {
	sensitive := explicit != nil && *explicit
	if account == nil || sensitive {
		return sensitive, nil
	}
	profile, err := s.profiles.Profile(ctx, account.ID)
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return profile.AlwaysMarkNSFW, nil
}

// commitLink persists a link-mode record. A concurrent registration of the
// same URI in the same scope wins; its record is returned with raced set.
func (s *Service) commitLink(ctx context.Context, file File, url *string, owner *uuid.UUID) (File, bool, error) {
	if url != nil {
		file.URL = *url
		thumb := *url
		file.ThumbnailURL = &thumb
	}
	file.Size = 0
	file.StoredInternal = false
	file.IsLink = true

	stored, err := s.files.Create(ctx, file)
	if err == nil {
		return stored, false, nil
	}
	if !errors.Is(err, ErrDuplicate) || file.URI == nil {
		return File{}, false, err
	}

	existing, findErr := s.files.FindByURI(ctx, *file.URI, owner)
	if findErr != nil {
		return File{}, false, fmt.Errorf("reload raced link file: %w", findErr)
	}
	s.log.Debug("link registration raced", zap.String("file_id", existing.ID.String()))
	return existing, true, nil
}

func (s *Service) storeAndCommit(ctx context.Context, file File, path string) (File, error) {
	thumb := s.thumbnails.Generate(ctx, path, file.Type)
	if thumb != nil {
		thumbnailsTotal.WithLabelValues("generated").Inc()
	} else {
		thumbnailsTotal.WithLabelValues("skipped").Inc()
	}

	key := s.backend.OriginalKey(extensionOf(file.Name, file.Type))
	var thumbKey string
	if thumb != nil {
		thumbKey = s.backend.ThumbnailKey(thumb.Ext)
	}

	var url, thumbURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		url, err = s.backend.StoreFromPath(gctx, key, path, file.Type, file.Name)
		return err
	})
	if thumb != nil {
		g.Go(func() error {
			var err error
			thumbURL, err = s.backend.StoreFromBuffer(gctx, thumbKey, thumb.Data, thumb.Type, "")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(ctx, key, thumbKey)
		return File{}, fmt.Errorf("store file bytes: %w", err)
	}

	file.URL = url
	file.AccessKey = &key
	file.StoredInternal = s.backend.Internal()
	if thumb != nil {
		file.ThumbnailURL = &thumbURL
		file.ThumbnailAccessKey = &thumbKey
	}

	stored, err := s.files.Create(ctx, file)
	if err != nil {
		s.discard(ctx, key, thumbKey)
		return File{}, err
	}
	return stored, nil
}

// discard removes bytes written for a registration that did not commit.
func (s *Service) discard(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			s.log.Warn("discard stored bytes", zap.String("key", key), zap.Error(err))
		}
	}
}

func (s *Service) announce(ctx context.Context, file File) {
	if file.AccountID != nil {
		accountID := *file.AccountID
		packed := Pack(file)
		s.submit(ctx, "drive.notify_created", func(ctx context.Context) error {
			if err := s.notifier.PublishMainStream(ctx, accountID, "driveFileCreated", packed); err != nil {
				return err
			}
			return s.notifier.PublishDriveStream(ctx, accountID, "fileCreated", packed)
		})
	}

	change := stats.Change{AccountID: file.AccountID, Host: file.AccountHost, Bytes: file.Size, Files: 1}
	s.submit(ctx, "drive.account_created", func(ctx context.Context) error {
		return s.accounting.Record(ctx, change)
	})
}

// submit hands fn to the background queue. Failure to enqueue is logged
// and never reaches the caller.
func (s *Service) submit(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := s.queue.Submit(ctx, name, fn); err != nil {
		s.log.Error("enqueue background task", zap.String("task", name), zap.Error(err))
	}
}

// Get returns a file owned by accountID.
func (s *Service) Get(ctx context.Context, accountID, fileID uuid.UUID) (File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return File{}, err
	}
	if f.AccountID == nil || *f.AccountID != accountID {
		return File{}, ErrFileNotFound
	}
	return f, nil
}

// List returns the account's files in folderID, newest first.
func (s *Service) List(ctx context.Context, accountID uuid.UUID, folderID *uuid.UUID, limit int) ([]File, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.files.List(ctx, accountID, folderID, limit)
}

// Delete removes the record, its stored bytes and its share of the usage counters.
func (s *Service) Delete(ctx context.Context, file File) error {
	removed, err := s.files.Delete(ctx, file.ID)
	if err != nil {
		return err
	}

	if !removed.IsLink {
		var keys []string
		if removed.AccessKey != nil {
			keys = append(keys, *removed.AccessKey)
		}
		if removed.ThumbnailAccessKey != nil {
			keys = append(keys, *removed.ThumbnailAccessKey)
		}
		s.discard(ctx, keys...)
	}

	change := stats.Change{AccountID: removed.AccountID, Host: removed.AccountHost, Bytes: -removed.Size, Files: -1}
	if err := s.accounting.Record(ctx, change); err != nil {
		s.log.Warn("record file removal", zap.String("file_id", removed.ID.String()), zap.Error(err))
	}

	if removed.AccountID != nil {
		if err := s.notifier.PublishDriveStream(ctx, *removed.AccountID, "fileDeleted", removed.ID); err != nil {
			s.log.Warn("publish file deletion", zap.String("file_id", removed.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func detectName(name, ext string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	if ext != "" {
		return "untitled." + ext
	}
	return "untitled"
}

// extensionOf picks the storage key extension from the display name,
// falling back to well-known image types.
func extensionOf(name, mediaType string) string {
	if m := nameExtPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/apng":
		return "apng"
	default:
		return ""
	}
}

func propertiesOf(info fileinfo.Info) Properties {
	var p Properties
	if info.HasDimensions() {
		w, h := info.Width, info.Height
		p.Width, p.Height = &w, &h
	}
	if info.AvgColor != nil {
		c := info.AvgColor.String()
		p.AvgColor = &c
	}
	return p
}
