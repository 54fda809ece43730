package artifacts

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/goliatone/go-baker/internal/hashing"
)

var errWriterRequiresFS = errors.New("artifacts: writer requires a filesystem")

// Writer persists blobs under content-addressed paths: the digest of the
// content is embedded in the filename immediately before the final extension
// (chart.a1b2c3d4.svg). Identical content always maps to the identical path,
// so repeated writes are no-ops and never corrupt existing files.
type Writer struct {
	fs billy.Filesystem
}

// NewWriter creates a writer rooted at the provided filesystem. Production
// callers pass an osfs rooted at the archive directory; tests use memfs.
func NewWriter(fs billy.Filesystem) (*Writer, error) {
	if fs == nil {
		return nil, errWriterRequiresFS
	}
	return &Writer{fs: fs}, nil
}

// Write stores the bytes under the content-addressed variant of logicalPath
// and returns the path actually used. When the target already exists the
// disk write is skipped; content addressing guarantees the existing file
// holds the same bytes.
func (w *Writer) Write(logicalPath string, data []byte) (string, error) {
	logicalPath = normalize(logicalPath)
	if logicalPath == "" {
		return "", errors.New("artifacts: write requires a logical path")
	}

	digest := hashing.HashBytes(data)
	physical := AddressedPath(logicalPath, digest)

	if exists, err := w.exists(physical); err != nil {
		return "", err
	} else if exists {
		return physical, nil
	}

	if err := w.fs.MkdirAll(path.Dir(physical), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create parent dirs for %s: %w", physical, err)
	}
	if err := util.WriteFile(w.fs, physical, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write %s: %w", physical, err)
	}
	return physical, nil
}

// Copy streams sourcePath from the supplied filesystem into targetDir under a
// content-addressed name. The digest is computed while streaming so large
// files are never held in memory. The temp-then-rename dance keeps partially
// copied files invisible to readers.
func (w *Writer) Copy(source billy.Filesystem, sourcePath, targetDir string) (string, error) {
	if source == nil {
		return "", errors.New("artifacts: copy requires a source filesystem")
	}
	sourcePath = normalize(sourcePath)
	if sourcePath == "" {
		return "", errors.New("artifacts: copy requires a source path")
	}

	in, err := source.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("artifacts: open %s: %w", sourcePath, err)
	}
	defer in.Close()

	targetDir = normalize(targetDir)
	if targetDir != "" {
		if err := w.fs.MkdirAll(targetDir, 0o755); err != nil {
			return "", fmt.Errorf("artifacts: create target dir %s: %w", targetDir, err)
		}
	}

	tmp, err := util.TempFile(w.fs, targetDir, ".cas-")
	if err != nil {
		return "", fmt.Errorf("artifacts: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), in); err != nil {
		tmp.Close()
		_ = w.fs.Remove(tmpName)
		return "", fmt.Errorf("artifacts: copy %s: %w", sourcePath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", fmt.Errorf("artifacts: close temp file: %w", err)
	}

	digest := hashing.EncodeSum(hasher.Sum(nil))

	physical := AddressedPath(path.Join(targetDir, path.Base(sourcePath)), digest)
	if exists, err := w.exists(physical); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", err
	} else if exists {
		_ = w.fs.Remove(tmpName)
		return physical, nil
	}
	if err := w.fs.Rename(tmpName, physical); err != nil {
		_ = w.fs.Remove(tmpName)
		return "", fmt.Errorf("artifacts: finalize %s: %w", physical, err)
	}
	return physical, nil
}

// AddressedPath inserts the digest into the filename immediately before the
// final extension. Paths without an extension get the digest appended as a
// trailing suffix.
func AddressedPath(logicalPath, digest string) string {
	dir := path.Dir(logicalPath)
	base := path.Base(logicalPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var name string
	if ext == "" {
		name = stem + "." + digest
	} else {
		name = stem + "." + digest + ext
	}
	if dir == "." {
		return name
	}
	return path.Join(dir, name)
}

func (w *Writer) exists(p string) (bool, error) {
	_, err := w.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("artifacts: stat %s: %w", p, err)
}

func normalize(p string) string {
	cleaned := strings.TrimLeft(path.Clean(strings.TrimSpace(p)), "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}
