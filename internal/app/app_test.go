package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eConfig = `
app:
  name: authhelper
  server:
    max_goroutine: 8
    cors: "http://localhost:3000"
instrument:
  enabled: false
  log_level: error
  log_mask_fields: "secret,code"
store:
  driver: sqlite
  sqlite:
    name: app-e2e
messaging:
  driver: memory
keyring:
  issuer: AuthHelper
  secret_size: 20
  totp:
    period: 30
    skew: 1
  hotp:
    window: 10
  validate:
    max_conflict_retries: 3
`

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func startApp(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(e2eConfig), 0o600))
	t.Setenv("CONFIG_PATH", path)

	a := New()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	a.Serve(l)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})

	return "http://" + l.Addr().String()
}

func call(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func TestApp_EndToEnd(t *testing.T) {
	base := startApp(t)

	status, _ := call(t, http.MethodGet, base+"/health", nil)
	require.Equal(t, http.StatusOK, status)

	t.Run("totp issue and validate", func(t *testing.T) {
		status, env := call(t, http.MethodPost, base+"/api/v1/keys/generate", map[string]any{
			"name": "e2e-totp",
			"kind": "totp",
		})
		require.Equal(t, http.StatusCreated, status, env.Message)

		var gen struct {
			Secret string `json:"secret"`
			URI    string `json:"otpauth_uri"`
			Issuer string `json:"issuer"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &gen))
		assert.Len(t, gen.Secret, 32)
		assert.Equal(t, "AuthHelper", gen.Issuer)
		assert.Contains(t, gen.URI, "issuer=AuthHelper")

		status, env = call(t, http.MethodGet, base+"/api/v1/keys/e2e-totp/otp", nil)
		require.Equal(t, http.StatusOK, status)
		var code struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &code))
		require.Len(t, code.Code, 6)

		status, env = call(t, http.MethodPost, base+"/api/v1/validate/e2e-totp", map[string]string{"code": code.Code})
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"valid":true`)
	})

	t.Run("hotp resync then replay", func(t *testing.T) {
		status, env := call(t, http.MethodPost, base+"/api/v1/keys", map[string]any{
			"name":   "e2e-hotp",
			"secret": "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
			"kind":   "hotp",
		})
		require.Equal(t, http.StatusCreated, status, env.Message)

		status, env = call(t, http.MethodPost, base+"/api/v1/validate/e2e-hotp", map[string]string{"code": "287082"})
		require.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"name":"e2e-hotp","kind":"hotp","valid":true,"counter":2}`, string(env.Data))

		status, env = call(t, http.MethodPost, base+"/api/v1/validate/e2e-hotp", map[string]string{"code": "287082"})
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"valid":false`)
	})

	t.Run("delete", func(t *testing.T) {
		status, _ := call(t, http.MethodDelete, base+"/api/v1/keys/e2e-hotp", nil)
		require.Equal(t, http.StatusNoContent, status)

		status, _ = call(t, http.MethodGet, base+"/api/v1/keys/e2e-hotp", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, base+"/api/v1/keys", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
