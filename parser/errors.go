package parser

import (
	"errors"
	"fmt"

	"github.com/poiesic/vortex/core"
)

var (
	// ErrUnknownRecordType is returned for a record whose metadata.type is not
	// pdf, json or html.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrUnsupportedSource is returned when a parser receives a source
	// variant it does not handle.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrEmptySource is returned when a source has neither a path nor data.
	ErrEmptySource = errors.New("source has no path or data")

	// ErrMissingPath is returned for a pdf record without metadata.path.
	ErrMissingPath = errors.New("pdf record has no path")
)

// formatError wraps cause as a core.ErrFormat for the named source.
func formatError(name string, cause error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrFormat, name, cause)
}
