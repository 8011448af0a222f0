package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/vortex/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecordParser(t *testing.T, ext *fakeExtractor) *StructuredRecordParser {
	t.Helper()
	p, err := NewStructuredRecordParser(WithExtractor(ext))
	require.NoError(t, err)
	return p
}

func TestStructuredRecordParser_JSON(t *testing.T) {
	data := []byte(`{
		"content": "Tuition fees will\nrise next year.\n\n\n\nStudents object.",
		"metadata": {
			"link": "https://news.example.org/fees",
			"name": "Fees to rise",
			"author": "Reporter",
			"date": "2023-05-14",
			"type": "json"
		}
	}`)

	doc, err := newTestRecordParser(t, &fakeExtractor{}).Parse(context.Background(), StructuredSource{Data: data})
	require.NoError(t, err)

	assert.Equal(t, "Tuition fees will rise next year.\n\nStudents object.", doc.Content)
	assert.Equal(t, "https://news.example.org/fees", doc.Metadata.Link)
	assert.Equal(t, "Fees to rise", doc.Metadata.Name)
	assert.Equal(t, "Reporter", doc.Metadata.Author)
	assert.Equal(t, "2023-05-14", doc.Metadata.Date())
}

func TestStructuredRecordParser_MissingTypeIsJSON(t *testing.T) {
	data := []byte(`{"content": "text", "metadata": {"link": "l", "name": "n"}}`)

	doc, err := newTestRecordParser(t, &fakeExtractor{}).Parse(context.Background(), StructuredSource{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "text", doc.Content)
	assert.Equal(t, "1900-01-01", doc.Metadata.Date())
}

func TestStructuredRecordParser_HTML(t *testing.T) {
	data := []byte(`{
		"content": "<html><head><title>Campus news</title></head><body><p>Fees rise.</p></body></html>",
		"metadata": {"link": "https://news.example.org/c", "type": "html"}
	}`)

	doc, err := newTestRecordParser(t, &fakeExtractor{}).Parse(context.Background(), StructuredSource{Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Fees rise.", doc.Content)
	assert.Equal(t, "Campus news", doc.Metadata.Name, "title is the name fallback")
}

func TestStructuredRecordParser_PDF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("%PDF-1.4 fake"), 0o644))
	recordPath := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(recordPath, []byte(`{
		"content": "",
		"metadata": {
			"link": "https://example.org/report.pdf",
			"name": "Scraped name",
			"author": "",
			"date": "2022-01-02",
			"type": "pdf",
			"path": "report.pdf"
		}
	}`), 0o644))

	ext := &fakeExtractor{ext: &Extraction{
		Pages: []string{"Page one", "Page two"},
		Info:  PdfInfo{Author: "Finance Office"},
	}}

	doc, err := newTestRecordParser(t, ext).Parse(context.Background(), StructuredSource{Path: recordPath})
	require.NoError(t, err)

	require.Len(t, ext.seen, 1)
	assert.Equal(t, []byte("%PDF-1.4 fake"), ext.seen[0], "relative path resolved against the record directory")
	assert.Equal(t, "Page one\n\nPage two", doc.Content)
	assert.Equal(t, "Scraped name", doc.Metadata.Name)
	assert.Equal(t, "Finance Office", doc.Metadata.Author)
	assert.Equal(t, "2022-01-02", doc.Metadata.Date())
}

func TestStructuredRecordParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"bad json", `{"content": `, nil},
		{"unknown type", `{"content": "x", "metadata": {"link": "l", "name": "n", "type": "docx"}}`, ErrUnknownRecordType},
		{"missing name", `{"content": "x", "metadata": {"link": "l", "type": "json"}}`, core.ErrMissingName},
		{"pdf without path", `{"metadata": {"link": "l", "name": "n", "type": "pdf"}}`, ErrMissingPath},
		{"pdf file missing", `{"metadata": {"link": "l", "name": "n", "type": "pdf", "path": "/nonexistent/x.pdf"}}`, nil},
	}

	p := newTestRecordParser(t, &fakeExtractor{ext: &Extraction{}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(context.Background(), StructuredSource{Data: []byte(tt.data)})
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrFormat)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDispatcher(t *testing.T) {
	ext := &fakeExtractor{ext: &Extraction{Pages: []string{"pdf text"}}}
	d, err := NewDispatcher(WithExtractor(ext))
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := d.Parse(ctx, PdfSource{Data: []byte("%PDF"), Hint: core.SourceMetadata{Link: "l", Name: "n"}})
	require.NoError(t, err)
	assert.Equal(t, "pdf text", doc.Content)

	doc, err = d.Parse(ctx, StructuredSource{Data: []byte(`{"content": "json text", "metadata": {"link": "l", "name": "n"}}`)})
	require.NoError(t, err)
	assert.Equal(t, "json text", doc.Content)

	_, err = d.Parse(ctx, nil)
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}
