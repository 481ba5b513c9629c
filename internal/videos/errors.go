package videos

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by lookups for ids with no row.
var ErrNotFound = errors.New("video not found")

// RepositoryErrorKind classifies metadata repository failures.
type RepositoryErrorKind string

const (
	// RepoConnectionLost means the database could not be reached or the
	// connection dropped mid-call.
	RepoConnectionLost RepositoryErrorKind = "connection_lost"
	// RepoConstraintViolation means the insert broke an integrity constraint.
	RepoConstraintViolation RepositoryErrorKind = "constraint_violation"
)

// RepositoryError is a classified metadata repository failure.
type RepositoryError struct {
	Kind RepositoryErrorKind
	Err  error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("metadata repository %s: %v", e.Kind, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// classifyRepoError maps a pgx error to a RepositoryError. SQLSTATE class 23
// covers integrity constraint violations; everything else is treated as a
// lost connection.
func classifyRepoError(err error) *RepositoryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		return &RepositoryError{Kind: RepoConstraintViolation, Err: err}
	}
	return &RepositoryError{Kind: RepoConnectionLost, Err: err}
}

// IngestErrorKind classifies ingestion coordinator failures.
type IngestErrorKind string

const (
	// IngestPayloadTooLarge means the upload exceeded the configured maximum.
	IngestPayloadTooLarge IngestErrorKind = "payload_too_large"
	// IngestStorageFailed means the object store put failed; no metadata row
	// was written.
	IngestStorageFailed IngestErrorKind = "storage_failed"
	// IngestMetadataFailed means the object was stored but the metadata
	// insert failed, leaving an orphan at OrphanedLocator.
	IngestMetadataFailed IngestErrorKind = "metadata_failed"
)

// IngestError is a coordinator-level failure. OrphanedLocator is set only for
// IngestMetadataFailed, so an operator or the reconciler can find the stored
// object that has no row.
type IngestError struct {
	Kind            IngestErrorKind
	OrphanedLocator string
	Err             error
}

func (e *IngestError) Error() string {
	if e.OrphanedLocator != "" {
		return fmt.Sprintf("ingest %s (orphaned object at %s): %v", e.Kind, e.OrphanedLocator, e.Err)
	}
	return fmt.Sprintf("ingest %s: %v", e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
