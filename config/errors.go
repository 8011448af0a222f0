package config

import "errors"

// ErrInvalidSettings is wrapped by every error Load and Validate return.
var ErrInvalidSettings = errors.New("invalid settings")
