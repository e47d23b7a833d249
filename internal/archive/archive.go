// Package archive bundles exported files into a single zip download.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// PackageName is the file name offered for the bundle.
	PackageName = "processed_files.zip"
	// MIMEType is the content type of the bundle.
	MIMEType = "application/zip"
)

// ErrEmptyPackage is returned when there is nothing to bundle. Callers show
// it as a warning; no archive is produced.
var ErrEmptyPackage = errors.New("no processed files to package")

// Entry is one file to place in the archive.
type Entry struct {
	Name string
	Data []byte
}

// Package writes entries into a deflate-compressed zip in the given order.
// Repeated names are made unique with UniqueNames.
func Package(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyPackage
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	names = UniqueNames(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now()

	for i, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     names[i],
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", names[i], err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", names[i], err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// UniqueNames returns names with repeats rewritten as "stem (n).ext",
// counting from 2 and skipping any name already in use. Blank names become
// "file".
func UniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[clean(n)] = true
	}

	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		name := clean(n)
		if !used[name] {
			used[name] = true
			out[i] = name
			continue
		}

		ext := path.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for k := 2; ; k++ {
			candidate := fmt.Sprintf("%s (%d)%s", stem, k, ext)
			if !used[candidate] && !taken[candidate] {
				used[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// clean keeps entries at the archive root.
func clean(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
