package parser

import (
	"context"
	"os"

	"github.com/poiesic/vortex/core"
)

// Source is a document awaiting parsing. The set of implementations is
// closed: PdfSource and StructuredSource.
type Source interface {
	// Name identifies the source in logs and failure reports.
	Name() string
	isSource()
}

// Parser converts a Source into a Document.
type Parser interface {
	Parse(ctx context.Context, src Source) (*core.Document, error)
}

// PdfSource is a raw PDF report. Hint supplies metadata used when the PDF
// does not carry its own.
type PdfSource struct {
	Path string
	Data []byte
	Hint core.SourceMetadata
}

// Name returns the path, or the hint's name for in-memory sources.
func (s PdfSource) Name() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Hint.Name
}

func (PdfSource) isSource() {}

// StructuredSource is a JSON record produced by the scraper.
type StructuredSource struct {
	Path string
	Data []byte
}

// Name returns the path of the record, or "<inline record>".
func (s StructuredSource) Name() string {
	if s.Path != "" {
		return s.Path
	}
	return "<inline record>"
}

func (StructuredSource) isSource() {}

// readSource returns data when set, otherwise the contents of path.
func readSource(path string, data []byte) ([]byte, error) {
	if data != nil {
		return data, nil
	}
	if path == "" {
		return nil, ErrEmptySource
	}
	return os.ReadFile(path)
}
