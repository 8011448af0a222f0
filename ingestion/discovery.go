package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/vortex/core"
	"github.com/poiesic/vortex/parser"
)

// Discover lists the sources directly inside dir, sorted by file name.
// *.json files become StructuredSource values and *.pdf files become
// PdfSource values hinted with a file:// link and the base name. Other
// entries, including subdirectories, are ignored.
func Discover(dir string) ([]parser.Source, []string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	// ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, err
	}

	var sources []parser.Source
	var ignored []string
	for _, entry := range entries {
		path := filepath.Join(abs, entry.Name())
		if entry.IsDir() {
			ignored = append(ignored, path)
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json":
			sources = append(sources, parser.StructuredSource{Path: path})
		case ".pdf":
			sources = append(sources, parser.PdfSource{
				Path: path,
				Hint: core.SourceMetadata{
					Link:            "file://" + filepath.ToSlash(path),
					Name:            strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
					PublicationDate: core.UnknownDate,
				},
			})
		default:
			ignored = append(ignored, path)
		}
	}
	return sources, ignored, nil
}
