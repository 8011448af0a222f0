package parser

import (
	"errors"
	"log/slog"
)

type options struct {
	extractor PageExtractor
	logger    *slog.Logger
}

// Option configures a parser.
type Option func(*options) error

// WithExtractor replaces the PDF page extractor.
func WithExtractor(extractor PageExtractor) Option {
	return func(o *options) error {
		if extractor == nil {
			return errors.New("parser: extractor cannot be nil")
		}
		o.extractor = extractor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

func applyOptions(opts []Option) (*options, error) {
	o := &options{
		extractor: PdfExtractor{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}
