package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/storage"
)

// ObjectStore is the bucket surface the reconciler needs.
type ObjectStore interface {
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// MetadataIndex answers whether a stored object is referenced by any row.
type MetadataIndex interface {
	ExistsByStorageKey(ctx context.Context, key string) (bool, error)
}

// CleanupQueue carries orphan cleanup jobs between the coordinator, the sweep
// and the worker loop. Satisfied by *queue.Queue.
type CleanupQueue interface {
	EnqueueOrphanCleanup(ctx context.Context, payload queue.OrphanCleanupPayload) error
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Reconciler removes orphaned objects: blobs persisted in the bucket whose
// metadata insert failed. It drains queued cleanup jobs and periodically
// sweeps the bucket prefix for unreferenced objects the queue missed.
type Reconciler struct {
	index  MetadataIndex
	store  ObjectStore
	queue  CleanupQueue
	grace  time.Duration // objects younger than this are never swept
	logger *zap.Logger
}

// NewReconciler creates an orphaned-object reconciler.
func NewReconciler(index MetadataIndex, store ObjectStore, q CleanupQueue, grace time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{index: index, store: store, queue: q, grace: grace, logger: logger}
}

// Process handles one cleanup job. The object is deleted only if no row
// references its key; a row can exist when a slow insert landed after the job
// was enqueued, or when the key was re-checked after a client retry.
func (r *Reconciler) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeOrphanCleanup {
		return fmt.Errorf("unexpected job type: %s", job.Type)
	}
	var payload queue.OrphanCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	exists, err := r.index.ExistsByStorageKey(ctx, payload.StorageKey)
	if err != nil {
		return fmt.Errorf("check storage key: %w", err)
	}
	if exists {
		r.logger.Info("object is referenced, skipping cleanup", zap.String("storage_key", payload.StorageKey))
		return nil
	}

	if err := r.store.Delete(ctx, payload.StorageKey); err != nil {
		return fmt.Errorf("delete orphan: %w", err)
	}
	r.logger.Info("orphaned object deleted",
		zap.String("storage_key", payload.StorageKey),
		zap.String("locator", payload.Locator),
		zap.String("reason", payload.Reason),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping")
			return
		default:
		}

		job, _, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("reconciler stopping")
				return
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := r.Process(ctx, job); err != nil {
			r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := r.queue.Retry(ctx, job); reErr != nil {
				r.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

// Sweep lists the videos prefix and enqueues cleanup for unreferenced objects
// older than the grace window. The window keeps in-flight uploads (stored but
// not yet inserted) out of the sweep.
func (r *Reconciler) Sweep(ctx context.Context, bucket string) error {
	objects, err := r.store.List(ctx, storage.FolderVideos+"/")
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	cutoff := time.Now().Add(-r.grace)
	enqueued := 0
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		exists, err := r.index.ExistsByStorageKey(ctx, obj.Key)
		if err != nil {
			return fmt.Errorf("check storage key: %w", err)
		}
		if exists {
			continue
		}
		payload := queue.OrphanCleanupPayload{
			Bucket:     bucket,
			StorageKey: obj.Key,
			Locator:    storage.Locator(bucket, obj.Key),
			Reason:     "sweep: no metadata row",
		}
		if err := r.queue.EnqueueOrphanCleanup(ctx, payload); err != nil {
			r.logger.Warn("enqueue sweep cleanup failed", zap.Error(err), zap.String("key", obj.Key))
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		r.logger.Info("sweep enqueued orphan cleanups", zap.Int("count", enqueued))
	}
	return nil
}

// RunSweep runs Sweep on a ticker until ctx is done.
func (r *Reconciler) RunSweep(ctx context.Context, bucket string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx, bucket); err != nil {
				r.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}
