package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/phrazzld/docmine-api/internal/store"
)

const (
	// ImagesDirName is the bundle subdirectory holding extracted assets.
	ImagesDirName = "images"

	// ResultFileName is the rendered primary result inside a bundle.
	ResultFileName = "result.md"

	// defaultUploadName is used when the client filename reduces to nothing.
	defaultUploadName = "upload.pdf"

	archiveExt = ".zip"
	dirPerm    = 0o755
	filePerm   = 0o644
)

// ArtifactStore implements store.ArtifactStore rooted at a single directory.
// Archive and DeleteBundle on the same task ID are serialized; operations on
// different IDs never contend.
type ArtifactStore struct {
	root   string
	locks  *keyedMutex
	logger *slog.Logger
}

var _ store.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore creates the root directory if needed and returns a store.
func NewArtifactStore(root string, logger *slog.Logger) (*ArtifactStore, error) {
	if root == "" {
		return nil, errors.New("storage root cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, store.NewIOError("root", "init", "failed to create storage root", err)
	}

	return &ArtifactStore{
		root:   abs,
		locks:  newKeyedMutex(),
		logger: logger,
	}, nil
}

// Root returns the absolute storage root.
func (s *ArtifactStore) Root() string {
	return s.root
}

// BundleDir returns the bundle directory for a task.
func (s *ArtifactStore) BundleDir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// ArchivePath returns where the zip archive for a task is written.
func (s *ArtifactStore) ArchivePath(id uuid.UUID) string {
	return filepath.Join(s.root, id.String()+archiveExt)
}

func (s *ArtifactStore) bundle(id uuid.UUID) *store.Bundle {
	dir := s.BundleDir(id)
	return &store.Bundle{
		TaskID:    id,
		Root:      dir,
		ImagesDir: filepath.Join(dir, ImagesDirName),
	}
}

// InitBundle creates the bundle directory tree. Idempotent.
func (s *ArtifactStore) InitBundle(ctx context.Context, id uuid.UUID) (*store.Bundle, error) {
	b := s.bundle(id)
	if err := os.MkdirAll(b.ImagesDir, dirPerm); err != nil {
		return nil, store.NewIOError("bundle", "init_bundle", "failed to create bundle directories", err)
	}
	return b, nil
}

// SaveUpload persists the raw uploaded document under the bundle.
// Only the base name of filename is used so an upload cannot escape its bundle.
func (s *ArtifactStore) SaveUpload(ctx context.Context, id uuid.UUID, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", store.ErrEmptyPayload
	}

	path := filepath.Join(s.BundleDir(id), uploadName(filename))
	if err := writeFileAtomic(path, data); err != nil {
		return "", store.NewIOError("bundle", "save_upload", "failed to write upload", err)
	}
	return path, nil
}

// ReadUpload loads the raw uploaded document.
func (s *ArtifactStore) ReadUpload(ctx context.Context, id uuid.UUID, filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.BundleDir(id), uploadName(filename)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrUploadNotFound
		}
		return nil, store.NewIOError("bundle", "read_upload", "failed to read upload", err)
	}
	return data, nil
}

// SaveImage writes one extracted asset into the bundle's images directory
// and returns its path relative to the bundle root, which is how the
// rendered result links to it.
func (s *ArtifactStore) SaveImage(ctx context.Context, id uuid.UUID, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", store.ErrEmptyPayload
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == ".." {
		return "", store.NewStoreError("image", "save_image", fmt.Sprintf("invalid image name %q", name), nil)
	}

	if err := writeFileAtomic(filepath.Join(s.BundleDir(id), ImagesDirName, base), data); err != nil {
		return "", store.NewIOError("image", "save_image", "failed to write image", err)
	}
	return ImagesDirName + "/" + base, nil
}

// SaveResult writes the rendered primary result and returns its path.
func (s *ArtifactStore) SaveResult(ctx context.Context, id uuid.UUID, content string) (string, error) {
	if content == "" {
		return "", store.ErrEmptyPayload
	}

	path := filepath.Join(s.BundleDir(id), ResultFileName)
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", store.NewIOError("bundle", "save_result", "failed to write result", err)
	}
	return path, nil
}

// ReadResult loads the rendered primary result.
func (s *ArtifactStore) ReadResult(ctx context.Context, id uuid.UUID) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.BundleDir(id), ResultFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", store.ErrResultNotFound
		}
		return "", store.NewIOError("bundle", "read_result", "failed to read result", err)
	}
	return string(data), nil
}

// Archive zips the bundle tree into <root>/<id>.zip, replacing any previous
// archive. The archive is assembled in a temporary file and renamed into
// place so a concurrent download never sees a partial zip.
func (s *ArtifactStore) Archive(ctx context.Context, id uuid.UUID) (string, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	dir := s.BundleDir(id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return "", store.ErrBundleNotFound
		}
		return "", store.NewIOError("bundle", "archive", "failed to stat bundle", err)
	}

	tmp, err := os.CreateTemp(s.root, "."+id.String()+"-*.zip.tmp")
	if err != nil {
		return "", store.NewIOError("archive", "archive", "failed to create temporary archive", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op once renamed.
		_ = os.Remove(tmpPath)
	}()

	if err := writeZip(ctx, tmp, dir); err != nil {
		_ = tmp.Close()
		if errors.Is(err, fs.ErrNotExist) {
			// Bundle removed while we were walking it.
			return "", store.ErrBundleNotFound
		}
		return "", store.NewIOError("archive", "archive", "failed to write archive", err)
	}
	if err := tmp.Close(); err != nil {
		return "", store.NewIOError("archive", "archive", "failed to close archive", err)
	}

	dest := s.ArchivePath(id)
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", store.NewIOError("archive", "archive", "failed to move archive into place", err)
	}

	s.logger.DebugContext(ctx, "bundle archived", "task_id", id)
	return dest, nil
}

// writeZip walks dir and writes every regular file into w with paths
// relative to dir.
func writeZip(ctx context.Context, w io.Writer, dir string) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if d.IsDir() {
			header.Name += "/"
			_, err = zw.CreateHeader(header)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		header.Method = zip.Deflate
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(entry, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}

	return zw.Close()
}

// DeleteBundle removes the archive first and then the directory tree.
// Missing files are not an error.
func (s *ArtifactStore) DeleteBundle(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := os.Remove(s.ArchivePath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return store.NewIOError("archive", "delete_bundle", "failed to remove archive", err)
	}

	if err := os.RemoveAll(s.BundleDir(id)); err != nil {
		return store.NewIOError("bundle", "delete_bundle", "failed to remove bundle directory", err)
	}

	s.logger.DebugContext(ctx, "bundle deleted", "task_id", id)
	return nil
}

// ListBundles returns every bundle directory and stray archive under the
// root. Entries whose names are not task IDs are ignored.
func (s *ArtifactStore) ListBundles(ctx context.Context) ([]store.BundleInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, store.NewIOError("root", "list_bundles", "failed to list storage root", err)
	}

	found := make(map[uuid.UUID]time.Time, len(entries))
	order := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			if !e.Type().IsRegular() || !strings.HasSuffix(name, archiveExt) {
				continue
			}
			name = strings.TrimSuffix(name, archiveExt)
		}

		id, err := uuid.Parse(name)
		if err != nil || id.String() != name {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Removed since ReadDir.
			continue
		}

		prev, seen := found[id]
		if !seen {
			order = append(order, id)
		}
		if !seen || info.ModTime().After(prev) {
			found[id] = info.ModTime()
		}
	}

	bundles := make([]store.BundleInfo, 0, len(order))
	for _, id := range order {
		bundles = append(bundles, store.BundleInfo{TaskID: id, ModTime: found[id]})
	}
	return bundles, nil
}

// uploadName reduces a client-supplied filename to a safe base name.
func uploadName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	switch base {
	case "", ".", "..", "/", ResultFileName, ImagesDirName:
		return defaultUploadName
	}
	return base
}

// writeFileAtomic writes data to a temporary sibling and renames it over
// path, so readers see either the old file or the complete new one.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
