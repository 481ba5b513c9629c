package videos

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/storage"
)

// ObjectStore is the blob storage the coordinator writes uploads to.
// Put stores content under a caller-generated key and returns a durable
// locator; it is attempted exactly once per ingest.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Get(ctx context.Context, key string) (body io.ReadCloser, contentType string, err error)
}

// MetadataStore persists and retrieves video rows.
type MetadataStore interface {
	Insert(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	Search(ctx context.Context, query string) ([]models.Video, error)
}

// OrphanQueue receives cleanup jobs for objects stored without a metadata row.
type OrphanQueue interface {
	EnqueueOrphanCleanup(ctx context.Context, payload queue.OrphanCleanupPayload) error
}

// Service coordinates ingestion (read, store, record) and serves queries.
type Service struct {
	store   ObjectStore
	repo    MetadataStore
	orphans OrphanQueue // optional; nil leaves orphan cleanup to the sweep
	maxSize int64
	logger  *zap.Logger
}

// NewService creates the ingestion/query service. maxSize bounds upload bytes.
func NewService(store ObjectStore, repo MetadataStore, orphans OrphanQueue, maxSize int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, repo: repo, orphans: orphans, maxSize: maxSize, logger: logger}
}

// Ingest reads the whole content stream, stores the bytes under a fresh
// collision-resistant key, then records a metadata row referencing the stored
// object. Each external call is attempted once. FileSize is the byte count
// actually consumed, never a client-declared value.
//
// If the store step fails no row is written. If the insert fails the stored
// object is orphaned; the returned IngestError carries its locator and a
// cleanup job is enqueued best-effort.
func (s *Service) Ingest(ctx context.Context, filename, description, contentType string, content io.Reader) (*models.Video, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(content, s.maxSize+1))
	if err != nil {
		// Client disconnect or truncated read: abort before any store call.
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > s.maxSize {
		return nil, &IngestError{
			Kind: IngestPayloadTooLarge,
			Err:  fmt.Errorf("upload exceeds %d bytes", s.maxSize),
		}
	}

	// Fresh token per attempt: same-named concurrent uploads (and client
	// retries after failure) never collide with an earlier object.
	key := storage.VideoKey(uuid.New().String(), filename)

	locator, err := s.store.Put(ctx, key, contentType, bytes.NewReader(buf.Bytes()), n)
	if err != nil {
		s.logger.Error("object store put failed", zap.Error(err), zap.String("key", key))
		return nil, &IngestError{Kind: IngestStorageFailed, Err: err}
	}

	v := &models.Video{
		Filename:       filename,
		Description:    description,
		FileSize:       n,
		StorageKey:     key,
		StorageLocator: locator,
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		s.logger.Error("metadata insert failed, object orphaned",
			zap.Error(err), zap.String("locator", locator))
		s.reportOrphan(ctx, locator, key, err)
		return nil, &IngestError{Kind: IngestMetadataFailed, OrphanedLocator: locator, Err: err}
	}

	s.logger.Info("video ingested",
		zap.String("id", v.ID.String()),
		zap.String("filename", v.Filename),
		zap.Int64("file_size", v.FileSize),
		zap.String("locator", v.StorageLocator),
	)
	return v, nil
}

// reportOrphan enqueues a cleanup job for a stored object with no row.
// Best-effort: the periodic sweep catches anything lost here.
func (s *Service) reportOrphan(ctx context.Context, locator, key string, cause error) {
	if s.orphans == nil {
		return
	}
	bucket, _, ok := storage.ParseLocator(locator)
	if !ok {
		return
	}
	payload := queue.OrphanCleanupPayload{
		Bucket:     bucket,
		StorageKey: key,
		Locator:    locator,
		Reason:     cause.Error(),
	}
	if err := s.orphans.EnqueueOrphanCleanup(ctx, payload); err != nil {
		s.logger.Warn("enqueue orphan cleanup failed", zap.Error(err), zap.String("locator", locator))
	}
}

// GetByID returns one video, or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all videos, newest first.
func (s *Service) List(ctx context.Context) ([]models.Video, error) {
	return s.repo.List(ctx)
}

// Search returns videos matching the query; empty slice on no match.
func (s *Service) Search(ctx context.Context, query string) ([]models.Video, error) {
	return s.repo.Search(ctx, query)
}

// OpenContent looks up a video and opens its stored object for streaming.
// Caller must close the body.
func (s *Service) OpenContent(ctx context.Context, id uuid.UUID) (*models.Video, io.ReadCloser, string, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, "", err
	}
	body, contentType, err := s.store.Get(ctx, v.StorageKey)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open stored object %s: %w", v.StorageLocator, err)
	}
	return v, body, contentType, nil
}
