package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/authhelper/internal/pkg/stacktrace"
)

// middlewareRecoverer turns a handler panic into the standard 500 envelope.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:errorlint,err113 // sentinel must be compared directly
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			stack := debug.Stack()
			var trace any = string(stack)
			if frames := stacktrace.InternalPaths(stack); len(frames) > 0 {
				trace = frames
			}

			slog.ErrorContext(r.Context(), "handler panicked",
				"panic", fmt.Sprint(rvr),
				"method", r.Method,
				"path", matchedRoutePath(r),
				"stack", trace,
			)

			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
