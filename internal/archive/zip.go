package archive

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// FileName is the name offered for the archive download.
const FileName = "filealchemist.zip"

type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// WriteZip writes entries as a zip archive to w. Entry names must already be
// unique, see EnsureUniqueFilenames.
func WriteZip(w io.Writer, entries []Entry) error {
	const op = "archive.WriteZip"

	zw := zip.NewWriter(w)
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			zw.Close()
			return fmt.Errorf("%s: duplicate entry %q", op, e.Name)
		}
		seen[e.Name] = struct{}{}

		modified := e.Modified
		if modified.IsZero() {
			modified = time.Now()
		}
		// Encoded images are already compressed.
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("%s: %w", op, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			zw.Close()
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Package resolves name collisions and writes the archive in one step.
func Package(w io.Writer, entries []Entry) error {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	unique := EnsureUniqueFilenames(names)

	resolved := make([]Entry, len(entries))
	for i, e := range entries {
		e.Name = unique[i]
		resolved[i] = e
	}
	return WriteZip(w, resolved)
}
