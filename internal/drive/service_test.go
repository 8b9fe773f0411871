package drive

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/fileinfo"
	"github.com/abduss/driveingest/internal/folder"
	"github.com/abduss/driveingest/internal/instance"
	"github.com/abduss/driveingest/internal/stats"
	"github.com/abduss/driveingest/internal/thumbnail"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func TestRegisterReturnsExistingFileForSameContent(t *testing.T) {
	env := newTestEnv(t)
	account := localAccount()

	first, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
	second, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", Name: "renamed.png"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.files.files, 1)
	assert.Len(t, env.accounting.changes, 1)
	assert.Len(t, env.notifier.events, 2)
	assert.Len(t, env.backend.stored, 2)
}

func TestRegisterDedupIsScopedPerOwner(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := localAccount(), localAccount()

	a, err := env.service.Register(context.Background(), RegisterInput{Account: &alice, Path: "/tmp/a"})
	require.NoError(t, err)
	b, err := env.service.Register(context.Background(), RegisterInput{Account: &bob, Path: "/tmp/a"})
	require.NoError(t, err)
	sys, err := env.service.Register(context.Background(), RegisterInput{Path: "/tmp/a"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, sys.ID)
	assert.Nil(t, sys.AccountID)
}

func TestRegisterForceCreatesSecondRecord(t *testing.T) {
	env := newTestEnv(t)
	account := localAccount()

	first, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
	second, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", Force: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.MD5, second.MD5)
	assert.Len(t, env.files.files, 2)
	assert.Len(t, env.accounting.changes, 2)
}

func TestRegisterPopulatesRecordFromProbe(t *testing.T) {
	env := newTestEnv(t)
	account := localAccount()
	comment := "holiday"

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", Comment: &comment})
	require.NoError(t, err)

	assert.Equal(t, "untitled.png", file.Name)
	assert.Equal(t, "image/png", file.Type)
	assert.Equal(t, int64(4096), file.Size)
	require.NotNil(t, file.Properties.Width)
	assert.Equal(t, 640, *file.Properties.Width)
	require.NotNil(t, file.Properties.AvgColor)
	assert.Equal(t, "rgb(10,20,30)", *file.Properties.AvgColor)
	assert.True(t, file.StoredInternal)
	require.NotNil(t, file.AccessKey)
	assert.Equal(t, "https://drive.example/files/"+*file.AccessKey, file.URL)
	require.NotNil(t, file.ThumbnailURL)
	assert.Equal(t, &comment, file.Comment)
	assert.Equal(t, "png", env.backend.lastExt)

	require.Len(t, env.accounting.changes, 1)
	assert.Equal(t, stats.Change{AccountID: &account.ID, Bytes: 4096, Files: 1}, env.accounting.changes[0])
	assert.Equal(t, []string{"driveFileCreated", "fileCreated"}, env.notifier.types())
}

func TestRegisterPropagatesProbeError(t *testing.T) {
	env := newTestEnv(t)
	env.prober.err = &fileinfo.ProbeError{Path: "/missing", Err: errors.New("no such file")}
	account := localAccount()

	_, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/missing"})

	require.ErrorIs(t, err, fileinfo.ErrUnreadable)
	assert.Empty(t, env.files.files)
	assert.Empty(t, env.backend.stored)
}

func TestRegisterRejectsLocalAccountOverQuota(t *testing.T) {
	env := newTestEnv(t)
	env.settings.value = instance.Settings{LocalDriveCapacityMB: 1, RemoteDriveCapacityMB: 1}
	account := localAccount()
	env.files.seed(File{ID: newID(t), AccountID: &account.ID, Size: mb, MD5: "other"})

	_, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})

	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Empty(t, env.backend.stored)
	assert.Len(t, env.files.files, 1)
	assert.Empty(t, env.accounting.changes)
}

func TestRegisterEvictsOldestRemoteFile(t *testing.T) {
	env := newTestEnv(t)
	queue := env.deferQueue()
	env.settings.value = instance.Settings{LocalDriveCapacityMB: 1, RemoteDriveCapacityMB: 1}
	account := remoteAccount()
	avatarKey, oldKey := "avatar-key", "old-key"
	avatar := File{ID: newID(t), AccountID: &account.ID, AccountHost: account.Host, Size: mb / 2, MD5: "avatar", AccessKey: &avatarKey}
	oldest := File{ID: newID(t), AccountID: &account.ID, AccountHost: account.Host, Size: mb / 2, MD5: "old", AccessKey: &oldKey}
	account.AvatarID = &avatar.ID
	env.files.seed(avatar, oldest)

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
	assert.True(t, env.files.has(oldest.ID))

	queue.drain(context.Background())

	assert.Equal(t, account.Host, file.AccountHost)
	assert.True(t, env.files.has(avatar.ID))
	assert.False(t, env.files.has(oldest.ID))
	assert.True(t, env.files.has(file.ID))
	assert.Contains(t, env.backend.deleted, oldKey)
	assert.Contains(t, env.accounting.changes, stats.Change{AccountID: &account.ID, Host: account.Host, Bytes: -mb / 2, Files: -1})
}

func TestRegisterNeverEvictsAvatarBannerOrNewFile(t *testing.T) {
	env := newTestEnv(t)
	queue := env.deferQueue()
	env.settings.value = instance.Settings{LocalDriveCapacityMB: 1, RemoteDriveCapacityMB: 1}
	account := remoteAccount()
	avatar := File{ID: newID(t), AccountID: &account.ID, AccountHost: account.Host, Size: mb / 2, MD5: "avatar"}
	banner := File{ID: newID(t), AccountID: &account.ID, AccountHost: account.Host, Size: mb / 2, MD5: "banner"}
	account.AvatarID, account.BannerID = &avatar.ID, &banner.ID
	env.files.seed(avatar, banner)

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
	queue.drain(context.Background())

	assert.True(t, env.files.has(avatar.ID))
	assert.True(t, env.files.has(banner.ID))
	assert.True(t, env.files.has(file.ID))
	assert.Empty(t, env.backend.deleted)
	for _, c := range env.accounting.changes {
		assert.Positive(t, c.Files)
	}
}

func TestRegisterSucceedsWithNothingToEvict(t *testing.T) {
	env := newTestEnv(t)
	queue := env.deferQueue()
	env.settings.value = instance.Settings{}
	account := remoteAccount()

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
	queue.drain(context.Background())

	assert.True(t, env.files.has(file.ID))
	assert.Empty(t, env.backend.deleted)
	assert.Len(t, env.files.files, 1)
}

func TestRegisterFolderFailureDoesNotEvict(t *testing.T) {
	env := newTestEnv(t)
	queue := env.deferQueue()
	env.settings.value = instance.Settings{LocalDriveCapacityMB: 1, RemoteDriveCapacityMB: 1}
	account := remoteAccount()
	oldKey := "old-key"
	oldest := File{ID: newID(t), AccountID: &account.ID, AccountHost: account.Host, Size: mb, MD5: "old", AccessKey: &oldKey}
	env.files.seed(oldest)

	missing := uuid.New()
	_, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", FolderID: &missing})
	require.ErrorIs(t, err, ErrFolderNotFound)
	queue.drain(context.Background())

	assert.True(t, env.files.has(oldest.ID))
	assert.Empty(t, env.backend.deleted)
	assert.Empty(t, env.accounting.changes)
}

func TestRegisterSkipsQuotaForSystemFiles(t *testing.T) {
	env := newTestEnv(t)
	env.settings.value = instance.Settings{}

	file, err := env.service.Register(context.Background(), RegisterInput{Path: "/tmp/a"})
	require.NoError(t, err)

	assert.True(t, file.OwnedBySystem())
	assert.Empty(t, env.notifier.events)
	assert.Len(t, env.accounting.changes, 1)
}

func TestRegisterLinkModeStoresNoBytes(t *testing.T) {
	env := newTestEnv(t)
	account := remoteAccount()
	url, uri := "https://remote.example/files/1.png", "https://remote.example/notes/1"

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", IsLink: true, URL: &url, URI: &uri})
	require.NoError(t, err)

	assert.True(t, file.IsLink)
	assert.False(t, file.StoredInternal)
	assert.Zero(t, file.Size)
	assert.Equal(t, url, file.URL)
	require.NotNil(t, file.ThumbnailURL)
	assert.Equal(t, url, *file.ThumbnailURL)
	assert.Equal(t, &url, file.Src)
	assert.Nil(t, file.AccessKey)
	assert.Empty(t, env.backend.stored)
	assert.Zero(t, env.thumbnails.calls)

	again, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", IsLink: true, URL: &url, URI: &uri})
	require.NoError(t, err)
	assert.Equal(t, file.ID, again.ID)
}

func TestRegisterLinkModeRaceReturnsWinner(t *testing.T) {
	env := newTestEnv(t)
	account := localAccount()
	url, uri := "https://remote.example/files/1.png", "https://remote.example/notes/1"
	winner := File{ID: newID(t), AccountID: &account.ID, IsLink: true, URL: url, URI: &uri, MD5: "other"}
	env.files.raceWith = &winner

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a", IsLink: true, URL: &url, URI: &uri})
	require.NoError(t, err)

	assert.Equal(t, winner.ID, file.ID)
	assert.Empty(t, env.notifier.events)
	assert.Empty(t, env.accounting.changes)
}

func TestRegisterSurvivesThumbnailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.thumbnails.thumb = nil
	account := localAccount()

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)

	assert.Nil(t, file.ThumbnailURL)
	assert.Nil(t, file.ThumbnailAccessKey)
	assert.Len(t, env.backend.stored, 1)
}

func TestRegisterRejectsForeignFolder(t *testing.T) {
	env := newTestEnv(t)
	owner, stranger := localAccount(), localAccount()
	f := folder.Folder{ID: uuid.New(), OwnerID: owner.ID, Name: "photos"}
	env.folders.folders[f.ID] = f

	_, err := env.service.Register(context.Background(), RegisterInput{Account: &stranger, Path: "/tmp/a", FolderID: &f.ID})
	require.ErrorIs(t, err, ErrFolderNotFound)

	missing := uuid.New()
	_, err = env.service.Register(context.Background(), RegisterInput{Account: &owner, Path: "/tmp/a", FolderID: &missing})
	require.ErrorIs(t, err, ErrFolderNotFound)

	file, err := env.service.Register(context.Background(), RegisterInput{Account: &owner, Path: "/tmp/a", FolderID: &f.ID})
	require.NoError(t, err)
	assert.Equal(t, &f.ID, file.FolderID)
	assert.Len(t, env.backend.stored, 2)
}

func TestRegisterAppliesSensitivityPreference(t *testing.T) {
	env := newTestEnv(t)
	cautious, relaxed := localAccount(), localAccount()
	env.profiles.nsfw[cautious.ID] = true

	marked, err := env.service.Register(context.Background(), RegisterInput{Account: &cautious, Path: "/tmp/a"})
	require.NoError(t, err)
	assert.True(t, marked.IsSensitive)

	plain, err := env.service.Register(context.Background(), RegisterInput{Account: &relaxed, Path: "/tmp/a"})
	require.NoError(t, err)
	assert.False(t, plain.IsSensitive)

	yes := true
	explicit, err := env.service.Register(context.Background(), RegisterInput{Account: &relaxed, Path: "/tmp/a", Force: true, Sensitive: &yes})
	require.NoError(t, err)
	assert.True(t, explicit.IsSensitive)
}

func TestRegisterDiscardsBytesWhenCommitFails(t *testing.T) {
	env := newTestEnv(t)
	env.files.createErr = errors.New("connection reset")
	account := localAccount()

	_, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.Error(t, err)

	assert.ElementsMatch(t, env.backend.stored, env.backend.deleted)
	assert.Empty(t, env.accounting.changes)
}

func TestRegisterIgnoresBackgroundFailures(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("redis down")
	env.accounting.err = errors.New("db down")
	account := localAccount()

	_, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)
}

func TestDeleteRemovesRecordBytesAndUsage(t *testing.T) {
	env := newTestEnv(t)
	account := localAccount()
	file, err := env.service.Register(context.Background(), RegisterInput{Account: &account, Path: "/tmp/a"})
	require.NoError(t, err)

	got, err := env.service.Get(context.Background(), account.ID, file.ID)
	require.NoError(t, err)
	_, err = env.service.Get(context.Background(), uuid.New(), file.ID)
	require.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, env.service.Delete(context.Background(), got))

	assert.False(t, env.files.has(file.ID))
	assert.ElementsMatch(t, []string{*file.AccessKey, *file.ThumbnailAccessKey}, env.backend.deleted)
	assert.Equal(t, stats.Change{AccountID: &account.ID, Bytes: -4096, Files: -1}, env.accounting.changes[1])
	assert.Equal(t, "fileDeleted", env.notifier.types()[2])
}

func TestDetectNameAndExtension(t *testing.T) {
	assert.Equal(t, "untitled.png", detectName("", "png"))
	assert.Equal(t, "untitled", detectName("  ", ""))
	assert.Equal(t, "cat.gif", detectName("cat.gif", "png"))

	assert.Equal(t, "gif", extensionOf("cat.gif", "image/png"))
	assert.Equal(t, "jpg", extensionOf("untitled", "image/jpeg"))
	assert.Equal(t, "", extensionOf("notes", "text/plain"))
}

// --- fakes ----

type testEnv struct {
	service    *Service
	files      *fakeFiles
	prober     *fakeProber
	thumbnails *fakeThumbnails
	backend    *fakeBackend
	folders    *fakeFolders
	profiles   *fakeProfiles
	settings   *fakeSettings
	notifier   *fakeNotifier
	accounting *fakeAccounting
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		files: &fakeFiles{},
		prober: &fakeProber{info: fileinfo.Info{
			MD5:      "5d41402abc4b2a76b9719d911017c592",
			Type:     fileinfo.Type{Mime: "image/png", Ext: "png"},
			Size:     4096,
			Width:    640,
			Height:   480,
			AvgColor: &fileinfo.RGB{R: 10, G: 20, B: 30},
		}},
		thumbnails: &fakeThumbnails{thumb: &thumbnail.Thumbnail{Data: []byte("thumb"), Type: "image/png", Ext: "png"}},
		backend:    &fakeBackend{},
		folders:    &fakeFolders{folders: map[uuid.UUID]folder.Folder{}},
		profiles:   &fakeProfiles{nsfw: map[uuid.UUID]bool{}},
		settings:   &fakeSettings{value: instance.Settings{LocalDriveCapacityMB: 1024, RemoteDriveCapacityMB: 32}},
		notifier:   &fakeNotifier{},
		accounting: &fakeAccounting{},
	}
	env.service = NewService(Dependencies{
		Files:      env.files,
		Folders:    env.folders,
		Profiles:   env.profiles,
		Prober:     env.prober,
		Thumbnails: env.thumbnails,
		Backend:    env.backend,
		Quota:      NewQuotaPolicy(env.files, env.settings),
		Notifier:   env.notifier,
		Accounting: env.accounting,
		Queue:      inlineQueue{},
	})
	return env
}

func localAccount() auth.Account {
	return auth.Account{ID: uuid.New(), Username: "alice"}
}

func remoteAccount() auth.Account {
	host := "remote.example"
	return auth.Account{ID: uuid.New(), Username: "bob", Host: &host}
}

func newID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id
}

type fakeFiles struct {
	mu        sync.Mutex
	files     []File
	createErr error
	raceWith  *File
}

func (f *fakeFiles) seed(files ...File) {
	f.files = append(f.files, files...)
}

func (f *fakeFiles) has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.ID == id {
			return true
		}
	}
	return false
}

func (f *fakeFiles) Create(ctx context.Context, file File) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return File{}, f.createErr
	}
	if f.raceWith != nil {
		f.files = append(f.files, *f.raceWith)
		f.raceWith = nil
		return File{}, ErrDuplicate
	}
	f.files = append(f.files, file)
	return file, nil
}

func (f *fakeFiles) FindByHash(ctx context.Context, md5 string, ownerID *uuid.UUID) (File, error) {
	return f.first(func(file File) bool {
		return !file.IsLink && file.MD5 == md5 && sameOwner(file.AccountID, ownerID)
	})
}

func (f *fakeFiles) FindByURI(ctx context.Context, uri string, ownerID *uuid.UUID) (File, error) {
	return f.first(func(file File) bool {
		return file.URI != nil && *file.URI == uri && sameOwner(file.AccountID, ownerID)
	})
}

func (f *fakeFiles) OldestEvictable(ctx context.Context, accountID uuid.UUID, exclude []uuid.UUID) (File, error) {
	return f.first(func(file File) bool {
		if !sameOwner(file.AccountID, &accountID) {
			return false
		}
		for _, id := range exclude {
			if id == file.ID {
				return false
			}
		}
		return true
	})
}

func (f *fakeFiles) Get(ctx context.Context, id uuid.UUID) (File, error) {
	return f.first(func(file File) bool { return file.ID == id })
}

func (f *fakeFiles) UsageOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, file := range f.files {
		if sameOwner(file.AccountID, &accountID) {
			total += file.Size
		}
	}
	return total, nil
}

func (f *fakeFiles) List(ctx context.Context, ownerID uuid.UUID, folderID *uuid.UUID, limit int) ([]File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []File
	for _, file := range f.files {
		if sameOwner(file.AccountID, &ownerID) && sameOwner(file.FolderID, folderID) && len(out) < limit {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFiles) Delete(ctx context.Context, id uuid.UUID) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, file := range f.files {
		if file.ID == id {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return file, nil
		}
	}
	return File{}, ErrFileNotFound
}

func (f *fakeFiles) first(match func(File) bool) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if match(file) {
			return file, nil
		}
	}
	return File{}, ErrFileNotFound
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type fakeProber struct {
	info fileinfo.Info
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (fileinfo.Info, error) {
	return f.info, f.err
}

type fakeThumbnails struct {
	thumb *thumbnail.Thumbnail
	calls int
}

func (f *fakeThumbnails) Generate(ctx context.Context, path, mediaType string) *thumbnail.Thumbnail {
	f.calls++
	return f.thumb
}

type fakeBackend struct {
	mu      sync.Mutex
	stored  []string
	deleted []string
	lastExt string
}

func (f *fakeBackend) Internal() bool { return true }

func (f *fakeBackend) OriginalKey(ext string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastExt = ext
	return uuid.NewString()
}

func (f *fakeBackend) ThumbnailKey(ext string) string {
	return "thumbnail-" + uuid.NewString()
}

func (f *fakeBackend) StoreFromPath(ctx context.Context, key, path, mediaType, filename string) (string, error) {
	return f.store(key), nil
}

func (f *fakeBackend) StoreFromBuffer(ctx context.Context, key string, data []byte, mediaType, filename string) (string, error) {
	return f.store(key), nil
}

func (f *fakeBackend) store(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, key)
	return "https://drive.example/files/" + key
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeFolders struct {
	folders map[uuid.UUID]folder.Folder
}

func (f *fakeFolders) GetFolder(ctx context.Context, ownerID, folderID uuid.UUID) (folder.Folder, error) {
	found, ok := f.folders[folderID]
	if !ok || found.OwnerID != ownerID {
		return folder.Folder{}, folder.ErrFolderNotFound
	}
	return found, nil
}

type fakeProfiles struct {
	nsfw map[uuid.UUID]bool
}

func (f *fakeProfiles) Profile(ctx context.Context, accountID uuid.UUID) (auth.Profile, error) {
	return auth.Profile{AccountID: accountID, AlwaysMarkNSFW: f.nsfw[accountID]}, nil
}

type fakeSettings struct {
	value instance.Settings
}

func (f *fakeSettings) Fetch(ctx context.Context) (instance.Settings, error) {
	return f.value, nil
}

type sentEvent struct {
	stream    string
	accountID uuid.UUID
	eventType string
}

type fakeNotifier struct {
	events []sentEvent
	err    error
}

func (f *fakeNotifier) PublishMainStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error {
	f.events = append(f.events, sentEvent{stream: "main", accountID: accountID, eventType: eventType})
	return f.err
}

func (f *fakeNotifier) PublishDriveStream(ctx context.Context, accountID uuid.UUID, eventType string, body any) error {
	f.events = append(f.events, sentEvent{stream: "drive", accountID: accountID, eventType: eventType})
	return f.err
}

func (f *fakeNotifier) types() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.eventType)
	}
	return out
}

type fakeAccounting struct {
	changes []stats.Change
	err     error
}

func (f *fakeAccounting) Record(ctx context.Context, c stats.Change) error {
	if f.err != nil {
		return f.err
	}
	f.changes = append(f.changes, c)
	return nil
}

// inlineQueue runs tasks synchronously so tests observe their effects.
type inlineQueue struct{}

func (inlineQueue) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_ = fn(ctx)
	return nil
}

// deferredQueue holds tasks until drain, like a worker that picks them up
// after Register has returned.
type deferredQueue struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
}

func (q *deferredQueue) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, fn)
	return nil
}

func (q *deferredQueue) drain(ctx context.Context) {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, fn := range tasks {
		_ = fn(ctx)
	}
}

func (e *testEnv) deferQueue() *deferredQueue {
	q := &deferredQueue{}
	e.service.queue = q
	return q
}
