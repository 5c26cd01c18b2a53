package apperrors

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrOpenDay       = errors.New("day is still open")
	ErrImportRunning = errors.New("import already running")
)
