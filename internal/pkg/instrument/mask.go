package instrument

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Redacted replaces every masked value.
const Redacted = "***"

// Masker redacts values whose key matches one of the configured names.
// Keys are compared case-insensitively. A nil or empty Masker is a no-op.
type Masker map[string]struct{}

// NewMasker builds a Masker from names such as "secret" or "Idempotency-Key".
func NewMasker(names []string) Masker {
	m := make(Masker, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			m[name] = struct{}{}
		}
	}
	return m
}

// Has reports whether key must be redacted.
func (m Masker) Has(key string) bool {
	_, ok := m[strings.ToLower(key)]
	return ok
}

// Value walks decoded JSON-like data and returns a redacted copy.
func (m Masker) Value(v any) any {
	if len(m) == 0 {
		return v
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if m.Has(k) {
				out[k] = Redacted
				continue
			}
			out[k] = m.Value(inner)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if m.Has(k) {
				out[k] = Redacted
				continue
			}
			out[k] = inner
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = m.Value(inner)
		}
		return out
	default:
		return v
	}
}

// JSON redacts a JSON document. ok is false when raw is not an object or array.
func (m Masker) JSON(raw []byte) (string, bool) {
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		return "", false
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", false
	}

	out, err := json.Marshal(m.Value(doc))
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Header returns a copy of h with masked header values replaced.
func (m Masker) Header(h http.Header) http.Header {
	if len(m) == 0 {
		return h
	}

	out := h.Clone()
	for k := range out {
		if m.Has(k) {
			out.Set(k, Redacted)
		}
	}
	return out
}
