package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/vortex/core"
)

// Record types understood by StructuredRecordParser.
const (
	RecordTypePDF  = "pdf"
	RecordTypeJSON = "json"
	RecordTypeHTML = "html"
)

// Record is the JSON shape written by the scraper.
type Record struct {
	Content  string         `json:"content"`
	Metadata RecordMetadata `json:"metadata"`
}

// RecordMetadata describes where a record came from and how to read it.
type RecordMetadata struct {
	Link   string `json:"link"`
	Name   string `json:"name"`
	Author string `json:"author"`
	Date   string `json:"date"`
	Type   string `json:"type"`
	Path   string `json:"path"`
}

// sourceMetadata converts the record fields to core metadata.
func (m RecordMetadata) sourceMetadata() core.SourceMetadata {
	return core.SourceMetadata{
		Link:            strings.TrimSpace(m.Link),
		Name:            strings.TrimSpace(m.Name),
		Author:          strings.TrimSpace(m.Author),
		PublicationDate: core.ParseDate(strings.TrimSpace(m.Date)),
	}
}

// StructuredRecordParser parses StructuredSource values.
type StructuredRecordParser struct {
	pdf    *PdfParser
	logger *slog.Logger
}

var _ Parser = (*StructuredRecordParser)(nil)

// NewStructuredRecordParser creates a StructuredRecordParser. Options are
// shared with the PdfParser used for pdf records.
func NewStructuredRecordParser(opts ...Option) (*StructuredRecordParser, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &StructuredRecordParser{
		pdf: &PdfParser{
			extractor: o.extractor,
			logger:    o.logger.With("component", "pdf-parser"),
		},
		logger: o.logger.With("component", "record-parser"),
	}, nil
}

// Parse decodes the record and produces a Document according to its type.
func (p *StructuredRecordParser) Parse(ctx context.Context, src Source) (*core.Document, error) {
	ss, ok := src.(StructuredSource)
	if !ok {
		return nil, formatError(src.Name(), fmt.Errorf("%w: %T", ErrUnsupportedSource, src))
	}

	data, err := readSource(ss.Path, ss.Data)
	if err != nil {
		return nil, formatError(ss.Name(), err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, formatError(ss.Name(), err)
	}

	meta := rec.Metadata.sourceMetadata()
	switch strings.ToLower(strings.TrimSpace(rec.Metadata.Type)) {
	case RecordTypePDF:
		return p.parsePDF(ctx, ss, rec.Metadata, meta)

	case RecordTypeJSON, "":
		return p.document(ss.Name(), Clean(rec.Content), meta)

	case RecordTypeHTML:
		title, text, err := ExtractHTML(rec.Content)
		if err != nil {
			return nil, formatError(ss.Name(), err)
		}
		if meta.Name == "" {
			meta.Name = title
		}
		return p.document(ss.Name(), Clean(text), meta)

	default:
		return nil, formatError(ss.Name(), fmt.Errorf("%w: %q", ErrUnknownRecordType, rec.Metadata.Type))
	}
}

func (p *StructuredRecordParser) parsePDF(ctx context.Context, ss StructuredSource, rm RecordMetadata, hint core.SourceMetadata) (*core.Document, error) {
	path := strings.TrimSpace(rm.Path)
	if path == "" {
		return nil, formatError(ss.Name(), ErrMissingPath)
	}
	if !filepath.IsAbs(path) && ss.Path != "" {
		path = filepath.Join(filepath.Dir(ss.Path), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, formatError(ss.Name(), err)
	}
	return p.pdf.parse(ctx, path, data, hint)
}

func (p *StructuredRecordParser) document(name, content string, meta core.SourceMetadata) (*core.Document, error) {
	if err := core.ValidateMetadata(meta); err != nil {
		return nil, formatError(name, err)
	}
	p.logger.Debug("parsed record", "source", name, "name", meta.Name, "chars", len(content))
	return &core.Document{Content: content, Metadata: meta}, nil
}
