package service

import "errors"

var (
	ErrNotFound          = errors.New("error not found")
	ErrNotLoaded         = errors.New("error portfolio is not loaded")
	ErrUnsupportedFormat = errors.New("error unsupported holdings file format")
	ErrUploadDisabled    = errors.New("error report upload is disabled")
)
