// Package archive materializes a job's work list from uploaded ZIP
// archives. It is a plain I/O wrapper: filtering to accepted image
// types happens here, everything downstream assumes clean units.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/SoubhikGhosh/neev-cheques-clearing/constants"
	"github.com/SoubhikGhosh/neev-cheques-clearing/internal/extract"
)

// Unpack reads every provided ZIP archive and returns one WorkUnit per
// accepted image entry. Directories, macOS resource forks and entries
// with non-image extensions are skipped. An unreadable archive or entry
// is a catastrophic fault: the whole job fails, no partial work list is
// returned.
func Unpack(archives [][]byte) ([]extract.WorkUnit, error) {
	var units []extract.WorkUnit
	for i, content := range archives {
		reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return nil, fmt.Errorf("open archive %d: %w", i+1, err)
		}
		for _, entry := range reader.File {
			if entry.FileInfo().IsDir() || strings.HasPrefix(entry.Name, "__MACOSX") {
				continue
			}
			mimeType := constants.MIMEForExt(filepath.Ext(entry.Name))
			if mimeType == "" {
				continue
			}
			data, err := readEntry(entry)
			if err != nil {
				return nil, fmt.Errorf("read %q from archive %d: %w", entry.Name, i+1, err)
			}
			units = append(units, extract.WorkUnit{
				Path:        entry.Name,
				Data:        data,
				ContentType: mimeType,
			})
		}
	}
	return units, nil
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
