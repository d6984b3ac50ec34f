package romloader

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
)

// extractFromZIP extracts the first ROM file from a ZIP archive
func (l *Loader) extractFromZIP(ra io.ReaderAt, size int64) ([]byte, string, error) {
	r, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open zip: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMFile(f.Name, l.extensions) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
		}
		defer rc.Close()

		data, err := l.limitedRead(rc)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return data, filepath.Base(f.Name), nil
	}

	return nil, "", ErrNoROMFile
}
