package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
)

// Optional interfaces a handler result may implement to shape the envelope.
type (
	statusCoder interface{ StatusCode() int }
	messager    interface{ Message() string }
	metaer      interface{ Meta() map[string]any }
)

type errorResponse struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// RawResponse is written verbatim instead of the JSON envelope.
type RawResponse struct {
	ContentType string
	Body        []byte
	// Filename, when set, is sent as an inline Content-Disposition.
	Filename string
}

const defaultSuccessMessage = "request has been successfully"

// writeResult encodes a handler result. nil and 204 results carry no body.
func writeResult(w http.ResponseWriter, resp any) {
	if raw, ok := resp.(*RawResponse); ok {
		writeRaw(w, raw)
		return
	}

	code := http.StatusOK
	if sc, ok := resp.(statusCoder); ok {
		code = sc.StatusCode()
	}
	if resp == nil || code == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body := successResponse{Message: defaultSuccessMessage, Data: resp}
	if m, ok := resp.(messager); ok {
		body.Message = m.Message()
	}
	if m, ok := resp.(metaer); ok {
		body.Meta = m.Meta()
	}
	writeJSON(w, body, code)
}

// writeError maps err onto the error envelope. Errors that are not a
// *goerror.Error are logged and reported as 500 without detail.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		slog.ErrorContext(ctx, "unmapped handler error", "error", err)
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	body := errorResponse{Message: gerr.Msg(), Error: gerr.Fields()}
	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		body.Error = verr.Values()
	}
	if gerr.StatusCode() >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "handler failed", "error", err, "code", gerr.Code().String())
	}
	writeJSON(w, body, gerr.StatusCode())
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeRaw sends binary payloads such as QR images. They hold secrets, so
// caches are told not to keep them.
func writeRaw(w http.ResponseWriter, raw *RawResponse) {
	ct := raw.ContentType
	if ct == "" {
		ct = http.DetectContentType(raw.Body)
	}

	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.Itoa(len(raw.Body)))
	h.Set("Cache-Control", "no-store")
	if raw.Filename != "" {
		h.Set("Content-Disposition", `inline; filename="`+raw.Filename+`"`)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(raw.Body); err != nil {
		slog.Error("failed to write raw response", "error", err)
	}
}
