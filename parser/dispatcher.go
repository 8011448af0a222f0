package parser

import (
	"context"
	"fmt"

	"github.com/poiesic/vortex/core"
)

// Dispatcher routes each Source variant to its parser.
type Dispatcher struct {
	pdf    *PdfParser
	record *StructuredRecordParser
}

var _ Parser = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher whose parsers share opts.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	pdf, err := NewPdfParser(opts...)
	if err != nil {
		return nil, err
	}
	record, err := NewStructuredRecordParser(opts...)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pdf: pdf, record: record}, nil
}

// Parse implements Parser.
func (d *Dispatcher) Parse(ctx context.Context, src Source) (*core.Document, error) {
	switch src.(type) {
	case PdfSource:
		return d.pdf.Parse(ctx, src)
	case StructuredSource:
		return d.record.Parse(ctx, src)
	default:
		return nil, formatError(fmt.Sprintf("%T", src), ErrUnsupportedSource)
	}
}
