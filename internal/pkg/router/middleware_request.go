package router

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the id that ties logs, spans and events of one request together.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is honoured when a proxy set it and no correlation id was sent.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// clientIPHeaders are consulted in order; the first valid address wins.
var clientIPHeaders = []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"}

// middlewareRequest runs first so every later log line carries the caller
// address and the correlation id.
func middlewareRequest(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r); ip != "" {
				r.RemoteAddr = ip
			}

			cid := correlationID(r.Header.Get(HeaderCorrelationID))
			if cid == "" {
				cid = correlationID(r.Header.Get(HeaderRequestID))
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}
			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	for _, h := range clientIPHeaders {
		first, _, _ := strings.Cut(r.Header.Get(h), ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}

	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().String()
	}
	return ""
}

// correlationID accepts printable ASCII only and truncates long values.
func correlationID(v string) string {
	v = strings.TrimSpace(v)
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return ""
		}
	}
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}
