// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/vortex/core"
)

// PdfInfo holds the entries of a PDF Info dictionary that become metadata.
type PdfInfo struct {
	Title        string
	Author       string
	CreationDate string
}

// Extraction is the raw result of reading a PDF: the text of every page in
// order plus its Info dictionary.
type Extraction struct {
	Pages []string
	Info  PdfInfo
}

// PageExtractor reads page text and Info metadata from PDF bytes.
type PageExtractor interface {
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// PdfExtractor is the default PageExtractor.
type PdfExtractor struct{}

var _ PageExtractor = PdfExtractor{}

// Extract reads every page of data. A page whose content stream cannot be
// decoded yields an error for the whole document.
func (PdfExtractor) Extract(ctx context.Context, data []byte) (ext *Extraction, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	ext = &Extraction{Pages: make([]string, 0, reader.NumPage())}
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			ext.Pages = append(ext.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		ext.Pages = append(ext.Pages, text)
	}

	info := reader.Trailer().Key("Info")
	if !info.IsNull() {
		ext.Info = PdfInfo{
			Title:        info.Key("Title").Text(),
			Author:       info.Key("Author").Text(),
			CreationDate: info.Key("CreationDate").Text(),
		}
	}
	return ext, nil
}

// PdfParser parses PdfSource values.
type PdfParser struct {
	extractor PageExtractor
	logger    *slog.Logger
}

var _ Parser = (*PdfParser)(nil)

// NewPdfParser creates a PdfParser. The default extractor is PdfExtractor.
func NewPdfParser(opts ...Option) (*PdfParser, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PdfParser{
		extractor: o.extractor,
		logger:    o.logger.With("component", "pdf-parser"),
	}, nil
}

// Parse extracts, cleans and joins the non-blank pages of a PdfSource.
// Embedded Title, Author and CreationDate override the hint when non-empty.
func (p *PdfParser) Parse(ctx context.Context, src Source) (*core.Document, error) {
	ps, ok := src.(PdfSource)
	if !ok {
		return nil, formatError(src.Name(), fmt.Errorf("%w: %T", ErrUnsupportedSource, src))
	}

	data, err := readSource(ps.Path, ps.Data)
	if err != nil {
		return nil, formatError(ps.Name(), err)
	}
	return p.parse(ctx, ps.Name(), data, ps.Hint)
}

func (p *PdfParser) parse(ctx context.Context, name string, data []byte, hint core.SourceMetadata) (*core.Document, error) {
	ext, err := p.extractor.Extract(ctx, data)
	if err != nil {
		return nil, formatError(name, err)
	}

	pages := make([]string, 0, len(ext.Pages))
	for _, page := range ext.Pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		pages = append(pages, Clean(page))
	}

	extracted := core.SourceMetadata{
		Name:            strings.TrimSpace(ext.Info.Title),
		Author:          strings.TrimSpace(ext.Info.Author),
		PublicationDate: core.ParseDate(strings.TrimSpace(ext.Info.CreationDate)),
	}
	meta := hint.Merge(extracted)
	if err := core.ValidateMetadata(meta); err != nil {
		return nil, formatError(name, err)
	}

	p.logger.Debug("parsed pdf", "source", name, "pages", len(ext.Pages), "textPages", len(pages), "title", meta.Name)
	return &core.Document{
		Content:  strings.Join(pages, "\n\n"),
		Metadata: meta,
	}, nil
}
