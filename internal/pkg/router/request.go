package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
)

// DefaultMaxUploadBytes bounds ReadFormFile when the caller passes a non-positive limit.
const DefaultMaxUploadBytes int64 = 10 << 20

// Request wraps http.Request with helpers for inbound handlers.
type Request struct {
	// Request is the underlying http.Request.
	*http.Request
}

// GetParam reads a path parameter from the request context (as stored by httprouter).
func (r *Request) GetParam(key string) string {
	return httprouter.ParamsFromContext(r.Context()).ByName(key)
}

func (r *Request) GetQuery(key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// GetQueryUint64 parses an optional unsigned query value. The second result
// reports whether the key was present.
func (r *Request) GetQueryUint64(key string) (uint64, bool, error) {
	queryValue := r.GetQuery(key)
	if queryValue == "" {
		return 0, false, nil
	}

	value, err := strconv.ParseUint(queryValue, 10, 64)
	if err != nil {
		return 0, false, goerror.NewInvalidFormat("Invalid query " + key)
	}

	return value, true, nil
}

func (r *Request) GetQueryInt(key string, fallback int) (int, error) {
	queryValue := r.GetQuery(key)
	if queryValue == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(queryValue)
	if err != nil {
		return 0, goerror.NewInvalidFormat("Invalid query " + key)
	}

	return value, nil
}

// GetHeader returns the trimmed value of a request header.
func (r *Request) GetHeader(key string) string {
	return strings.TrimSpace(r.Header.Get(key))
}

// DecodeBody decodes the JSON body into dst.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil {
		return goerror.NewInvalidFormat()
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return goerror.NewInvalidFormat()
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat()
	}

	return nil
}

// ReadFormFile parses a multipart form of at most maxBytes and returns the content of
// the named file field. Other form values stay available through FormValue.
func (r *Request) ReadFormFile(field string, maxBytes int64) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, goerror.NewInvalidFormat("Invalid request content-type")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	// the extra KiB leaves room for multipart framing and small text fields
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+1<<10)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, goerror.NewInvalidFormat("Uploaded file is too large")
		}
		return nil, goerror.NewInvalidFormat()
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, goerror.NewInvalidFormat("Missing form file " + field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, goerror.NewInvalidFormat()
	}
	if int64(len(data)) > maxBytes {
		return nil, goerror.NewInvalidFormat("Uploaded file is too large")
	}

	return data, nil
}
