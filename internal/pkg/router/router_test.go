package router

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
)

type created struct {
	Name string `json:"name"`
}

func (created) StatusCode() int { return http.StatusCreated }
func (created) Message() string { return "credential created" }

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
app:
  name: authhelper
  maintenance:
    endpoints: "/maint"
instrument:
  log_mask_fields: "secret"
`))
	require.NoError(t, err)

	return NewRouter(Config{
		Config:     cfg,
		UUID:       uid.NewSequence("cid-generated"),
		Instrument: instrument.NewNoop(),
	})
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Envelopes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	r.POST("/things/:name", func(req *Request) (any, error) {
		return created{Name: req.GetParam("name")}, nil
	})
	r.DELETE("/things/:name", func(*Request) (any, error) { return nil, nil })
	r.GET("/missing", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("credential not found", goerror.CodeNotFound)
	})
	r.GET("/invalid", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(validator.V10ValidationError{"name": "name is required"})
	})
	r.GET("/boom", func(*Request) (any, error) { return nil, errors.New("raw") })
	r.GET("/panic", func(*Request) (any, error) { panic("oops") })
	r.GET("/maint", func(*Request) (any, error) { return created{}, nil })
	r.GET("/png", func(*Request) (any, error) {
		return &RawResponse{ContentType: "image/png", Body: []byte("\x89PNG"), Filename: "a.png"}, nil
	})

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/things/alice", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"credential created","data":{"name":"alice"}}`, rec.Body.String())
	assert.Equal(t, "cid-generated", rec.Header().Get(HeaderCorrelationID))

	rec = serve(r, httptest.NewRequest(http.MethodDelete, "/things/alice", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"credential not found"}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"name is required"`)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/maint", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "\x89PNG", rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodPut, "/things/alice", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_CorrelationIDFromHeader(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	var seen string
	r.GET("/cid", func(req *Request) (any, error) {
		seen = instrument.GetCorrelationID(req.Context())
		return created{}, nil
	})

	req := httptest.NewRequest(http.MethodGet, "/cid", nil)
	req.Header.Set(HeaderRequestID, "  from-proxy ")
	rec := serve(r, req)

	assert.Equal(t, "from-proxy", seen)
	assert.Equal(t, "from-proxy", rec.Header().Get(HeaderCorrelationID))
}

func TestRouter_MaintenanceSwitch(t *testing.T) {
	t.Parallel()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
app:
  maintenance:
    enabled: true
    retry_after_seconds: 30
`))
	require.NoError(t, err)

	r := NewRouter(Config{Config: cfg, UUID: uid.NewSequence("cid"), Instrument: instrument.NewNoop()})
	r.GET("/health", func(*Request) (any, error) { return created{}, nil })
	r.GET("/api/v1/keys", func(*Request) (any, error) { return created{}, nil })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/keys", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"service is under maintenance"}`, rec.Body.String())
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"true client ip", map[string]string{"True-Client-IP": "203.0.113.7", "X-Real-IP": "10.0.0.1"}, "10.0.0.9:4000", "203.0.113.7"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 198.51.100.2 , 10.0.0.1"}, "10.0.0.9:4000", "198.51.100.2"},
		{"invalid header falls through", map[string]string{"X-Real-IP": "nope", "X-Forwarded-For": "2001:db8::1"}, "10.0.0.9:4000", "2001:db8::1"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"nothing usable", nil, "pipe", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestCorrelationIDSanitising(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc-123", correlationID(" abc-123 "))
	assert.Empty(t, correlationID("evil\r\ninjected"))
	assert.Empty(t, correlationID("has space"))
	assert.Len(t, correlationID(strings.Repeat("a", 300)), maxCorrelationIDLen)
}

func TestLoggableBody(t *testing.T) {
	t.Parallel()

	masker := instrument.NewMasker([]string{"secret", "code"})

	got := loggableBody("application/json", []byte(`{"name":"a","secret":"JBSWY3DP"}`), false, masker)
	assert.Equal(t, map[string]any{"name": "a", "secret": "***"}, got)

	got = loggableBody("application/x-www-form-urlencoded", []byte("code=123456&name=a"), false, masker)
	assert.Equal(t, map[string]any{"code": "***", "name": "a"}, got)

	got = loggableBody("application/json", []byte(`{"secret":"JBSW`), true, masker)
	assert.Equal(t, "<unparsable json body omitted>", got)

	got = loggableBody("multipart/form-data; boundary=x", []byte("--x"), false, masker)
	assert.Equal(t, "<multipart body omitted>", got)

	got = loggableBody("image/png", []byte{0x89, 'P', 'N', 'G', 0xff, 0xfe}, false, masker)
	assert.Equal(t, "<binary body omitted>", got)

	assert.Nil(t, loggableBody("application/json", nil, false, masker))
}

func TestRequest_DecodeBody(t *testing.T) {
	t.Parallel()

	var dst struct {
		Name string `json:"name"`
	}

	req := &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))}
	require.NoError(t, req.DecodeBody(&dst))
	assert.Equal(t, "a", dst.Name)

	for _, body := range []string{`{"name":"a","x":1}`, `{"name":"a"}{}`, `not json`} {
		req = &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))}
		var gerr *goerror.Error
		require.ErrorAs(t, req.DecodeBody(&dst), &gerr, body)
		assert.Equal(t, http.StatusBadRequest, gerr.StatusCode())
	}
}

func TestRequest_Queries(t *testing.T) {
	t.Parallel()

	req := &Request{Request: httptest.NewRequest(http.MethodGet, "/?counter=7&limit=x&bad=-1", nil)}

	v, ok, err := req.GetQueryUint64("counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), v)

	_, ok, err = req.GetQueryUint64("absent")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = req.GetQueryUint64("bad")
	require.Error(t, err)

	n, err := req.GetQueryInt("absent", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = req.GetQueryInt("limit", 50)
	require.Error(t, err)
}

func multipartRequest(t *testing.T, field string, content []byte, values map[string]string) *http.Request {
	t.Helper()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile(field, "qr.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRequest_ReadFormFile(t *testing.T) {
	t.Parallel()

	req := &Request{Request: multipartRequest(t, "file", []byte("image-bytes"), map[string]string{"name": "alice"})}
	data, err := req.ReadFormFile("file", 1024)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
	assert.Equal(t, "alice", req.FormValue("name"))

	req = &Request{Request: multipartRequest(t, "other", []byte("x"), nil)}
	_, err = req.ReadFormFile("file", 1024)
	require.Error(t, err)

	req = &Request{Request: multipartRequest(t, "file", bytes.Repeat([]byte("x"), 64), nil)}
	_, err = req.ReadFormFile("file", 16)
	require.Error(t, err)

	plain := &Request{Request: httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))}
	plain.Header.Set("Content-Type", "application/json")
	_, err = plain.ReadFormFile("file", 0)
	require.Error(t, err)
}

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "h"}, order)
}
