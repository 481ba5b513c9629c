package videos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/storage"
)

const testBucket = "test-bucket"

type fakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	putCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if f.putErr != nil {
		return "", f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return storage.Locator(testBucket, key), nil
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", &storage.StoreError{Kind: storage.StoreUnavailable, Err: errors.New("no such key")}
	}
	return io.NopCloser(bytes.NewReader(data)), "video/mp4", nil
}

type fakeRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]models.Video
	insertErr error
	now       time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]models.Video{}, now: time.Now().UTC()}
}

func (f *fakeRepo) Insert(_ context.Context, v *models.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return &RepositoryError{Kind: RepoConnectionLost, Err: f.insertErr}
	}
	v.ID = uuid.New()
	f.now = f.now.Add(time.Second)
	v.UploadTime = f.now
	f.byID[v.ID] = *v
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (f *fakeRepo) List(_ context.Context) ([]models.Video, error) {
	return f.match(func(models.Video) bool { return true })
}

func (f *fakeRepo) Search(_ context.Context, query string) ([]models.Video, error) {
	q := strings.ToLower(query)
	return f.match(func(v models.Video) bool {
		return strings.Contains(strings.ToLower(v.Filename), q) ||
			strings.Contains(strings.ToLower(v.Description), q)
	})
}

func (f *fakeRepo) ExistsByStorageKey(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.byID {
		if v.StorageKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) match(pred func(models.Video) bool) ([]models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []models.Video{}
	for _, v := range f.byID {
		if pred(v) {
			list = append(list, v)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].UploadTime.Equal(list[j].UploadTime) {
			return list[i].UploadTime.After(list[j].UploadTime)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

type fakeOrphanQueue struct {
	mu       sync.Mutex
	payloads []queue.OrphanCleanupPayload
}

func (f *fakeOrphanQueue) EnqueueOrphanCleanup(_ context.Context, p queue.OrphanCleanupPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func newTestService(store *fakeStore, repo *fakeRepo, orphans OrphanQueue, maxSize int64) *Service {
	return NewService(store, repo, orphans, maxSize, nil)
}

func TestIngestFileSizeMatchesBytesRead(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	svc := newTestService(store, repo, nil, 1<<20)

	content := bytes.Repeat([]byte("v"), 1024)
	v, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, int64(1024), v.FileSize)
	assert.NotEqual(t, uuid.Nil, v.ID)
	assert.NotEmpty(t, v.StorageLocator)
	assert.False(t, v.UploadTime.IsZero())
	assert.Equal(t, content, store.objects[v.StorageKey])

	got, err := svc.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.StorageLocator, got.StorageLocator)
	assert.Equal(t, v.FileSize, got.FileSize)
}

func TestIngestPayloadTooLarge(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeRepo(), nil, 10)

	_, err := svc.Ingest(context.Background(), "big.mp4", "", "video/mp4", bytes.NewReader(make([]byte, 11)))
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, IngestPayloadTooLarge, ingestErr.Kind)
	assert.Zero(t, store.putCalls, "nothing may reach the store for an oversized upload")
}

func TestIngestAtSizeLimitSucceeds(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeRepo(), nil, 10)

	v, err := svc.Ingest(context.Background(), "exact.mp4", "", "video/mp4", bytes.NewReader(make([]byte, 10)))
	require.NoError(t, err)
	assert.Equal(t, int64(10), v.FileSize)
}

func TestIngestStoreFailureWritesNoRecord(t *testing.T) {
	store := newFakeStore()
	store.putErr = &storage.StoreError{Kind: storage.StoreUnavailable, Err: errors.New("dial tcp: timeout")}
	repo := newFakeRepo()
	svc := newTestService(store, repo, nil, 1<<20)

	_, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", bytes.NewReader([]byte("data")))
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, IngestStorageFailed, ingestErr.Kind)
	assert.Empty(t, ingestErr.OrphanedLocator)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "no record may be visible after a failed store step")
}

func TestIngestMetadataFailureReportsOrphan(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	repo.insertErr = errors.New("connection lost")
	orphans := &fakeOrphanQueue{}
	svc := newTestService(store, repo, orphans, 1<<20)

	_, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", bytes.NewReader([]byte("data")))
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, IngestMetadataFailed, ingestErr.Kind)
	require.NotEmpty(t, ingestErr.OrphanedLocator)

	// The orphaned locator points at the object that actually got stored.
	bucket, key, ok := storage.ParseLocator(ingestErr.OrphanedLocator)
	require.True(t, ok)
	assert.Equal(t, testBucket, bucket)
	assert.Contains(t, store.objects, key)

	require.Len(t, orphans.payloads, 1)
	assert.Equal(t, key, orphans.payloads[0].StorageKey)
	assert.Equal(t, ingestErr.OrphanedLocator, orphans.payloads[0].Locator)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIngestRetryAfterMetadataFailureNeverCollides(t *testing.T) {
	store := newFakeStore()
	repo := newFakeRepo()
	repo.insertErr = errors.New("connection lost")
	svc := newTestService(store, repo, nil, 1<<20)

	_, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", bytes.NewReader([]byte("first attempt")))
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	_, orphanKey, ok := storage.ParseLocator(ingestErr.OrphanedLocator)
	require.True(t, ok)

	repo.insertErr = nil
	v, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", bytes.NewReader([]byte("second attempt")))
	require.NoError(t, err)

	assert.NotEqual(t, orphanKey, v.StorageKey, "retry must get a fresh storage key")
	assert.Equal(t, []byte("first attempt"), store.objects[orphanKey], "orphaned object must not be overwritten")
	assert.Equal(t, []byte("second attempt"), store.objects[v.StorageKey])
}

func TestIngestReadFailureAbortsBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeRepo(), nil, 1<<20)

	_, err := svc.Ingest(context.Background(), "clip.mp4", "", "video/mp4", failingReader{})
	require.Error(t, err)
	var ingestErr *IngestError
	assert.False(t, errors.As(err, &ingestErr), "a read failure is not a store or metadata failure")
	assert.Zero(t, store.putCalls)
}

func TestSearchEmptyQueryMatchesAllWithStableOrdering(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeRepo(), nil, 1<<20)

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		_, err := svc.Ingest(context.Background(), name, "", "video/mp4", bytes.NewReader([]byte(name)))
		require.NoError(t, err)
	}

	first, err := svc.Search(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, first, second, "ordering must be stable absent intervening writes")
}

func TestSearchMatchesDescription(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeRepo(), nil, 1<<20)

	_, err := svc.Ingest(context.Background(), "raw-0001.mp4", "Keynote highlights", "video/mp4", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	got, err := svc.Search(context.Background(), "keynote")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "raw-0001.mp4", got[0].Filename)

	none, err := svc.Search(context.Background(), "doesnotexist")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetByIDNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeRepo(), nil, 1<<20)

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
