package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrValidation indicates missing or malformed caller input (file, fields, URL)
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrExternalService indicates a catalog provider or storage call failed
	ErrExternalService = errors.New("external service failure")

	// ErrDecode indicates an archive or tag container could not be decoded
	ErrDecode = errors.New("decode failed")

	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
