package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Bundle describes where a task's artifacts live on disk.
// Paths are derived from the task ID alone.
type Bundle struct {
	TaskID    uuid.UUID
	Root      string
	ImagesDir string
}

// ArtifactStore manages each task's on-disk bundle: the raw upload,
// extracted images, the rendered result and an optional zip archive.
// Distinct task IDs never share files.
type ArtifactStore interface {
	// InitBundle creates the bundle directory tree. Idempotent.
	InitBundle(ctx context.Context, id uuid.UUID) (*Bundle, error)

	// SaveUpload persists the raw uploaded document under the bundle.
	// Returns ErrEmptyPayload for zero-length data and ErrIO on write errors.
	SaveUpload(ctx context.Context, id uuid.UUID, filename string, data []byte) (string, error)

	// ReadUpload loads the raw uploaded document.
	// Returns ErrUploadNotFound if the file is missing.
	ReadUpload(ctx context.Context, id uuid.UUID, filename string) ([]byte, error)

	// SaveImage writes one extracted asset into the bundle's image folder and
	// returns its path relative to the bundle root.
	SaveImage(ctx context.Context, id uuid.UUID, name string, data []byte) (string, error)

	// SaveResult writes the rendered primary result and returns its reference.
	// Returns ErrEmptyPayload for empty content and ErrIO on write errors.
	SaveResult(ctx context.Context, id uuid.UUID, content string) (string, error)

	// ReadResult loads the rendered primary result.
	// Returns ErrResultNotFound if the file is missing.
	ReadResult(ctx context.Context, id uuid.UUID) (string, error)

	// Archive produces a zip of the full bundle tree and returns its path.
	// Safe to repeat; a previous archive is replaced.
	// Returns ErrBundleNotFound if the bundle directory is absent.
	Archive(ctx context.Context, id uuid.UUID) (string, error)

	// DeleteBundle removes the archive and then the directory tree.
	// Idempotent: no error if already absent.
	DeleteBundle(ctx context.Context, id uuid.UUID) error

	// ListBundles returns every bundle (directory or stray archive) under the
	// root, used to find bundles whose task record no longer exists.
	ListBundles(ctx context.Context) ([]BundleInfo, error)
}

// BundleInfo identifies a bundle found on disk.
type BundleInfo struct {
	TaskID uuid.UUID
	// ModTime is the most recent modification time of the bundle directory
	// or its archive.
	ModTime time.Time
}
