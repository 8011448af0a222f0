// Package parser turns source files into cleaned core.Document values.
//
// Two kinds of source exist: PdfSource for raw PDF reports and
// StructuredSource for JSON records written by the scraper. A record either
// carries its text inline, points at a PDF on disk, or carries raw HTML.
// Every parse failure wraps core.ErrFormat.
package parser
