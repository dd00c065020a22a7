package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxLoggedBodyBytes = 32 * 1024
	instrumentScope    = "authhelper/http"
)

func matchedRoutePath(r *http.Request) string {
	if p := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); p != "" {
		return p
	}
	return r.URL.Path
}

// responseTap records what the handler wrote and keeps the first
// maxLoggedBodyBytes of the body for the access log.
type responseTap struct {
	http.ResponseWriter
	status    int
	written   int
	body      bytes.Buffer
	truncated bool
	err       error
}

func (t *responseTap) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(p []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}

	if room := maxLoggedBodyBytes - t.body.Len(); room < len(p) {
		t.body.Write(p[:max(room, 0)])
		t.truncated = true
	} else {
		t.body.Write(p)
	}

	n, err := t.ResponseWriter.Write(p)
	t.written += n
	return n, err
}

// SetError lets the endpoint adapter hand the handler error to the span.
func (t *responseTap) SetError(err error) { t.err = err }

// Unwrap exposes the underlying writer to http.ResponseController.
func (t *responseTap) Unwrap() http.ResponseWriter { return t.ResponseWriter }

func (t *responseTap) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("authhelper.http.requests",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram("authhelper.http.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return m
}

// middlewareObservability wraps each request in a server span, records
// request metrics and writes a masked access log for request and response.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	var masker instrument.Masker
	if cfg != nil {
		masker = instrument.NewMasker(cfg.GetArray("instrument.log_mask_fields"))
	}
	tracer := ins.Tracer(instrumentScope)
	metrics := newHTTPMetrics(ins.Meter(instrumentScope))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchedRoutePath(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.NetworkProtocolVersionKey.String(r.Proto),
					semconv.ServerAddressKey.String(r.Host),
					semconv.ClientAddressKey.String(r.RemoteAddr),
					semconv.UserAgentOriginalKey.String(r.UserAgent()),
				),
			)
			defer span.End()

			reqBody, reqTruncated := peekBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"ip", r.RemoteAddr,
				"headers", masker.Header(r.Header),
				"body", loggableBody(r.Header.Get("Content-Type"), reqBody, reqTruncated, masker),
			)

			tap := &responseTap{ResponseWriter: w}
			next.ServeHTTP(tap, r.WithContext(ctx))

			status := tap.statusCode()
			elapsed := time.Since(start)
			attrs := metric.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			)

			span.SetAttributes(
				semconv.HTTPResponseStatusCodeKey.Int(status),
				attribute.Int("http.response.body.size", tap.written),
			)
			if tap.err != nil {
				span.RecordError(tap.err)
			}
			if status >= http.StatusInternalServerError {
				msg := http.StatusText(status)
				if tap.err != nil {
					msg = tap.err.Error()
				}
				span.SetStatus(codes.Error, msg)
			}

			if metrics.requests != nil {
				metrics.requests.Add(ctx, 1, attrs)
			}
			if metrics.duration != nil {
				metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
			}

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", tap.written,
				"latency_ms", elapsed.Milliseconds(),
				"body", loggableBody(tap.Header().Get("Content-Type"), tap.body.Bytes(), tap.truncated, masker),
			)
		})
	}
}

// peekBody reads up to maxLoggedBodyBytes of the request body and rewinds it
// so the handler still sees every byte.
func peekBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes], true
	}
	return head, false
}

// loggableBody renders a captured body for logs. JSON and urlencoded forms are
// masked field by field. Uploads, binary payloads and JSON cut off at the
// capture limit are summarised since they cannot be masked.
func loggableBody(contentType string, body []byte, truncated bool, masker instrument.Masker) any {
	if len(body) == 0 {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	var out any
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return "<multipart body omitted>"
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			fields := make(map[string]any, len(values))
			for k, v := range values {
				fields[k] = strings.Join(v, ",")
			}
			out = masker.Value(fields)
		}
	case body[0] == '{' || body[0] == '[':
		var doc any
		if truncated || json.Unmarshal(body, &doc) != nil {
			return "<unparsable json body omitted>"
		}
		out = masker.Value(doc)
	}

	if out == nil {
		if !utf8.Valid(body) {
			return "<binary body omitted>"
		}
		out = string(body)
	}
	if truncated {
		return map[string]any{"body": out, "truncated": true}
	}
	return out
}
