package router

import (
	"net/http"
	"slices"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
)

// Handler returns the value to encode in the success envelope, or an error
// that is mapped onto the error envelope.
type Handler func(r *Request) (any, error)

// Config holds what the router and its middleware need.
type Config struct {
	// Config is read per request by the maintenance switch and once for log masking.
	Config config.Config
	// UUID generates correlation ids for requests that arrive without one.
	UUID       uid.StringID
	Instrument instrument.Instrumentation
}

// Router is an http.Handler over httprouter. Every endpoint runs behind the
// same middleware chain.
type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// errorSetter is implemented by writers that want to see the handler error.
type errorSetter interface{ SetError(err error) }

func NewRouter(cfg Config) *Router {
	ins := cfg.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	return &Router{
		hr: &httprouter.Router{
			RedirectTrailingSlash:  true,
			RedirectFixedPath:      true,
			HandleMethodNotAllowed: true,
			HandleOPTIONS:          true,
			SaveMatchedRoutePath:   true,
			NotFound:               fixedError(http.StatusNotFound, "endpoint not found"),
			MethodNotAllowed:       fixedError(http.StatusMethodNotAllowed, "method not allowed"),
		},
		mws: []Middleware{
			middlewareRequest(cfg.UUID),
			middlewareRecoverer,
			middlewareObservability(cfg.Config, ins),
			middlewareMaintenance(cfg.Config),
		},
	}
}

func fixedError(code int, msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, errorResponse{Message: msg}, code)
	})
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodGet, path, h, mws)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodPost, path, h, mws)
}

func (r *Router) DELETE(path string, h Handler, mws ...Middleware) {
	r.handle(http.MethodDelete, path, h, mws)
}

// handle adapts h to net/http. Route specific middleware runs inside the
// shared chain.
func (r *Router) handle(method, path string, h Handler, mws []Middleware) {
	adapter := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err == nil {
			writeResult(w, resp)
			return
		}

		if s, ok := w.(errorSetter); ok {
			s.SetError(err)
		}
		writeError(req.Context(), w, err)
	})

	r.hr.Handler(method, path, Chain(adapter, slices.Concat(r.mws, mws)...))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}
