package model

import "errors"

// ErrInvalidInput rejects empty or degenerate input before any analysis runs.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidConfig rejects a scoring or traffic configuration at construction time.
var ErrInvalidConfig = errors.New("invalid config")
