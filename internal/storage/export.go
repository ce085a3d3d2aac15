package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	exportPrefix = "api_response_"
	exportLayout = "20060102_150405"

	// Secure file permissions - owner read/write only
	secureFileMode = 0600 // -rw-------
	secureDirMode  = 0700 // drwx------
)

// ExportName derives the artifact file name from the export time
func ExportName(at time.Time) string {
	return exportPrefix + at.Format(exportLayout) + ".json"
}

// WriteExport writes data unchanged to dir/ExportName(at) and returns the path.
// An existing file with the same name is refused rather than overwritten.
func WriteExport(dir string, at time.Time, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, secureDirMode); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ExportName(at))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, secureFileMode)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("export file already exists: %s", path)
		}
		return "", err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
