package inbound

import (
	"net/http"
	"time"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type GenerateRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Algorithm string `json:"algorithm"`
	Digits    int    `json:"digits"`
	Period    uint64 `json:"period"`
	Counter   uint64 `json:"counter"`
	Issuer    string `json:"issuer"`
}

// GenerateResponse is the only response that carries the secret.
type GenerateResponse struct {
	KeyResponse
	Secret   string `json:"secret"`
	URI      string `json:"otpauth_uri"`
	Replayed bool   `json:"replayed,omitempty"`
}

func (r GenerateResponse) StatusCode() int {
	if r.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (GenerateResponse) Message() string {
	return "Key generated. The secret will not be shown again."
}

type CreateRequest struct {
	Name      string `json:"name"`
	Secret    string `json:"secret"`
	Kind      string `json:"kind"`
	Algorithm string `json:"algorithm"`
	Digits    int    `json:"digits"`
	Period    uint64 `json:"period"`
	Counter   uint64 `json:"counter"`
	Issuer    string `json:"issuer"`
}

type ImportURIRequest struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// KeyResponse describes a stored key without its secret.
type KeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Algorithm string    `json:"algorithm"`
	Digits    int       `json:"digits"`
	Period    uint64    `json:"period,omitempty"`
	Counter   *uint64   `json:"counter,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newKeyResponse(c entity.Credential) KeyResponse {
	resp := KeyResponse{
		ID:        c.ID,
		Name:      c.Name,
		Kind:      c.Kind.String(),
		Algorithm: c.Algorithm.String(),
		Digits:    c.Digits,
		Issuer:    c.Issuer,
		CreatedAt: c.CreatedAt,
	}
	if c.IsHOTP() {
		counter := c.Counter
		resp.Counter = &counter
	} else {
		resp.Period = c.Period
	}
	return resp
}

type CreatedKeyResponse struct {
	KeyResponse
}

func (CreatedKeyResponse) StatusCode() int { return http.StatusCreated }

func (CreatedKeyResponse) Message() string { return "Key registered" }

type ListResponse []KeyResponse

func (l ListResponse) Meta() map[string]any {
	return map[string]any{"total": len(l)}
}

type CodeResponse struct {
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	Code          string  `json:"code"`
	TimeRemaining *uint64 `json:"time_remaining,omitempty"`
	Counter       *uint64 `json:"counter,omitempty"`
}

type ValidateRequest struct {
	Code string `json:"code"`
}

type ValidateResponse struct {
	Name          string  `json:"name"`
	Kind          string  `json:"kind"`
	Valid         bool    `json:"valid"`
	TimeRemaining *uint64 `json:"time_remaining,omitempty"`
	Counter       *uint64 `json:"counter,omitempty"`
}

func (r ValidateResponse) Message() string {
	if r.Valid {
		return "Code is valid"
	}
	return "Code is invalid"
}

type URIResponse struct {
	Name string `json:"name"`
	URI  string `json:"otpauth_uri"`
}
