package binder

import "errors"

var (
	// ErrNotApplicable tells handler.Wrap to skip a binder for this request.
	ErrNotApplicable        = errors.New("binder.not_applicable")
	ErrUnsupportedMediaType = errors.New("binder.unsupported_media_type")
	ErrMissingContentType   = errors.New("binder.missing_content_type")
	ErrInvalidJSON          = errors.New("binder.invalid_json")
	ErrInvalidQuery         = errors.New("binder.invalid_query")
	ErrInvalidPath          = errors.New("binder.invalid_path")
)
