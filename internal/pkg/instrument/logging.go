package instrument

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const (
	logKeyTime        = "ts"
	logKeyLevel       = "severity"
	logKeySource      = "file"
	logKeyCorrelation = "_cID"
	logKeyService     = "service"
)

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func initLogging(w io.Writer, serviceName string, lp *sdklog.LoggerProvider, maskFields []string, level slog.Level) {
	slog.SetDefault(slog.New(newHandler(w, serviceName, lp, maskFields, level)))
}

// newHandler writes JSON lines to w and, when lp is set, mirrors every record
// to the OTLP log pipeline. Records are tagged and redacted before either sink
// sees them.
func newHandler(w io.Writer, serviceName string, lp *sdklog.LoggerProvider, maskFields []string, level slog.Level) slog.Handler {
	var sink slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: renameAttr,
	})
	if lp != nil {
		sink = fanout{sink, otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(lp))}
	}

	return &recordHandler{
		sink:    sink,
		service: serviceName,
		masker:  NewMasker(maskFields),
	}
}

// renameAttr maps the builtin keys onto the names our log pipeline indexes and
// trims source paths to the module-relative part.
func renameAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = logKeyTime
	case slog.LevelKey:
		a.Key = logKeyLevel
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String(logKeySource, "internal/"+rel+":"+strconv.Itoa(src.Line))
	}
	return a
}

type recordHandler struct {
	sink    slog.Handler
	service string
	masker  Masker
}

func (h *recordHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level)
}

func (h *recordHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})

	if cid := GetCorrelationID(ctx); cid != "" {
		out.AddAttrs(slog.String(logKeyCorrelation, cid))
	}
	out.AddAttrs(slog.String(logKeyService, h.service))

	return h.sink.Handle(ctx, out)
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &recordHandler{sink: h.sink.WithAttrs(redacted), service: h.service, masker: h.masker}
}

func (h *recordHandler) WithGroup(name string) slog.Handler {
	return &recordHandler{sink: h.sink.WithGroup(name), service: h.service, masker: h.masker}
}

func (h *recordHandler) redact(a slog.Attr) slog.Attr {
	if len(h.masker) == 0 {
		return a
	}
	if h.masker.Has(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		inner := make([]slog.Attr, len(group))
		for i, ga := range group {
			inner[i] = h.redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(inner...)}
	case slog.KindString:
		if s, ok := h.masker.JSON([]byte(a.Value.String())); ok {
			return slog.String(a.Key, s)
		}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any, map[string]string, []any:
			return slog.Any(a.Key, h.masker.Value(v))
		case []byte:
			if s, ok := h.masker.JSON(v); ok {
				return slog.String(a.Key, s)
			}
		}
	}
	return a
}

// fanout forwards each record to every enabled handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
