package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"

	"github.com/dmitrymomot/notifykit/binder"
)

// JSONResponse is the envelope every API response uses.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// JSON wraps v in the data field. An error value renders as JSONError.
func JSON(v any, opts ...JSONOption) Response {
	if err, ok := v.(error); ok {
		return JSONError(err, opts...)
	}
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err with the status derived from its type.
func JSONError(err error, opts ...JSONOption) Response {
	status, detail := classify(err)
	r := &jsonResponse{status: status, body: JSONResponse{Error: detail}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Empty responds with 204 and no body.
func Empty() Response { return emptyResponse{status: http.StatusNoContent} }

type emptyResponse struct{ status int }

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// classify maps an error onto a status code and a client-facing detail.
// Unrecognized errors become a 500 without leaking their text.
func classify(err error) (int, *ErrorDetail) {
	var verr ValidationError
	if errors.As(err, &verr) {
		d := &ErrorDetail{Code: "validation_error", Message: verr.Error()}
		if len(verr) > 0 {
			d.Details = make(map[string][]string, len(verr))
			maps.Copy(d.Details, verr)
		}
		return http.StatusUnprocessableEntity, d
	}

	var herr HTTPError
	if errors.As(err, &herr) {
		msg := http.StatusText(herr.Code)
		if err.Error() != herr.Key {
			msg = err.Error()
		}
		return herr.Code, &ErrorDetail{Code: herr.Key, Message: msg}
	}

	switch {
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return http.StatusUnsupportedMediaType, &ErrorDetail{Code: "unsupported_media_type", Message: err.Error()}
	case errors.Is(err, binder.ErrInvalidJSON), errors.Is(err, binder.ErrInvalidQuery), errors.Is(err, binder.ErrInvalidPath):
		return http.StatusBadRequest, &ErrorDetail{Code: "bad_request", Message: err.Error()}
	}

	return http.StatusInternalServerError, &ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
