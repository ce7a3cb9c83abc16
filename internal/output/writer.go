package output

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"pagemd/internal/scraper"
)

// Writer persists rendered documents to disk.
type Writer struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// NewWriter creates a Writer with 0755 directories and 0644 files.
func NewWriter() *Writer {
	return &Writer{dirPerm: 0o755, filePerm: 0o644}
}

// Write stores data at path, creating parent directories and replacing any
// existing file. Data is staged in a temporary file in the same directory
// and renamed into place, so a failed write never leaves a partial file.
func (w *Writer) Write(path string, data []byte) error {
	if err := w.write(path, data); err != nil {
		return &scraper.WriteError{Path: path, Err: err}
	}
	return nil
}

func (w *Writer) write(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.dirPerm); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write file")
	}
	if err := tmp.Chmod(w.filePerm); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to set permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to move file into place")
	}
	return nil
}
