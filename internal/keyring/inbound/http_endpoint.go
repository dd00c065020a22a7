package inbound

import (
	"net/url"

	"github.com/shandysiswandi/authhelper/internal/keyring/usecase"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
	"github.com/shandysiswandi/authhelper/internal/pkg/qrcode"
	"github.com/shandysiswandi/authhelper/internal/pkg/router"
)

// HeaderIdempotencyKey deduplicates retried generate requests.
const HeaderIdempotencyKey = "Idempotency-Key"

// HTTPEndpoint exposes HTTP handlers for the key ring.
type HTTPEndpoint struct {
	uc uc
}

func (h *HTTPEndpoint) Health(_ *router.Request) (any, error) {
	return HealthResponse{Status: "ok"}, nil
}

// Generate issues a key with a server generated secret.
// @Summary Generate key
// @Description Creates a TOTP or HOTP key with a random secret and returns the secret and otpauth URI once.
// @Tags Keys
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first result for repeated requests"
// @Param request body GenerateRequest true "Generate payload"
// @Success 201 {object} router.successResponse{data=GenerateResponse} "Generated key"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 409 {object} router.errorResponse "Name already exists"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/keys/generate [post]
func (h *HTTPEndpoint) Generate(r *router.Request) (any, error) {
	var req GenerateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.GenerateCredential(r.Context(), usecase.GenerateCredentialInput{
		IdempotencyKey: r.GetHeader(HeaderIdempotencyKey),
		Name:           req.Name,
		Kind:           req.Kind,
		Algorithm:      req.Algorithm,
		Digits:         req.Digits,
		Period:         req.Period,
		Counter:        req.Counter,
		Issuer:         req.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return GenerateResponse{
		KeyResponse: newKeyResponse(resp.Credential),
		Secret:      otp.EncodeSecret(resp.Credential.Secret),
		URI:         resp.URI,
		Replayed:    resp.Replayed,
	}, nil
}

// Create registers a key from a caller supplied base32 secret.
// @Summary Register key
// @Tags Keys
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Key payload"
// @Success 201 {object} router.successResponse{data=KeyResponse} "Registered key"
// @Failure 400 {object} router.errorResponse "Invalid request body or secret"
// @Failure 409 {object} router.errorResponse "Name already exists"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/keys [post]
func (h *HTTPEndpoint) Create(r *router.Request) (any, error) {
	var req CreateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	cred, err := h.uc.CreateCredential(r.Context(), usecase.CreateCredentialInput{
		Name:      req.Name,
		Secret:    req.Secret,
		Kind:      req.Kind,
		Algorithm: req.Algorithm,
		Digits:    req.Digits,
		Period:    req.Period,
		Counter:   req.Counter,
		Issuer:    req.Issuer,
	})
	if err != nil {
		return nil, err
	}

	return CreatedKeyResponse{KeyResponse: newKeyResponse(*cred)}, nil
}

// ImportURI registers a key from an otpauth URI.
// @Summary Import otpauth URI
// @Tags Keys
// @Accept json
// @Produce json
// @Param request body ImportURIRequest true "URI payload"
// @Success 201 {object} router.successResponse{data=KeyResponse} "Registered key"
// @Failure 400 {object} router.errorResponse "Malformed URI"
// @Failure 409 {object} router.errorResponse "Name already exists"
// @Router /api/v1/keys/uri [post]
func (h *HTTPEndpoint) ImportURI(r *router.Request) (any, error) {
	var req ImportURIRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	cred, err := h.uc.ImportCredentialURI(r.Context(), usecase.ImportCredentialURIInput{
		URI:  req.URI,
		Name: req.Name,
	})
	if err != nil {
		return nil, err
	}

	return CreatedKeyResponse{KeyResponse: newKeyResponse(*cred)}, nil
}

// ImportQR registers a key from an uploaded QR code image.
// @Summary Import QR code
// @Tags Keys
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "QR code image"
// @Param name formData string false "Overrides the name encoded in the QR code"
// @Success 201 {object} router.successResponse{data=KeyResponse} "Registered key"
// @Failure 400 {object} router.errorResponse "Invalid image or QR code"
// @Failure 409 {object} router.errorResponse "Name already exists"
// @Router /api/v1/keys/qr [post]
func (h *HTTPEndpoint) ImportQR(r *router.Request) (any, error) {
	image, err := r.ReadFormFile("file", qrcode.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	cred, err := h.uc.ImportCredentialQR(r.Context(), usecase.ImportCredentialQRInput{
		Image: image,
		Name:  r.FormValue("name"),
	})
	if err != nil {
		return nil, err
	}

	return CreatedKeyResponse{KeyResponse: newKeyResponse(*cred)}, nil
}

// List returns every key without secrets.
// @Summary List keys
// @Tags Keys
// @Produce json
// @Param kind query string false "totp or hotp"
// @Param issuer query string false "Exact issuer"
// @Success 200 {object} router.successResponse{data=[]KeyResponse} "Keys"
// @Router /api/v1/keys [get]
func (h *HTTPEndpoint) List(r *router.Request) (any, error) {
	creds, err := h.uc.ListCredentials(r.Context(), usecase.ListCredentialsInput{
		Kind:   r.GetQuery("kind"),
		Issuer: r.GetQuery("issuer"),
	})
	if err != nil {
		return nil, err
	}

	resp := make(ListResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, newKeyResponse(c))
	}

	return resp, nil
}

func (h *HTTPEndpoint) Detail(r *router.Request) (any, error) {
	cred, err := h.uc.GetCredential(r.Context(), usecase.GetCredentialInput{Name: r.GetParam("name")})
	if err != nil {
		return nil, err
	}

	return newKeyResponse(*cred), nil
}

// Delete removes a key.
// @Summary Delete key
// @Tags Keys
// @Param name path string true "Key name"
// @Success 204 "No Content"
// @Failure 404 {object} router.errorResponse "Key not found"
// @Router /api/v1/keys/{name} [delete]
func (h *HTTPEndpoint) Delete(r *router.Request) (any, error) {
	if err := h.uc.DeleteCredential(r.Context(), usecase.DeleteCredentialInput{Name: r.GetParam("name")}); err != nil {
		return nil, err
	}

	return nil, nil
}

// Code returns the current code for a key. HOTP keys advance their counter.
// @Summary Current code
// @Tags Codes
// @Produce json
// @Param name path string true "Key name"
// @Success 200 {object} router.successResponse{data=CodeResponse} "Code"
// @Failure 404 {object} router.errorResponse "Key not found"
// @Failure 409 {object} router.errorResponse "Counter changed concurrently"
// @Router /api/v1/keys/{name}/otp [get]
func (h *HTTPEndpoint) Code(r *router.Request) (any, error) {
	out, err := h.uc.GenerateCode(r.Context(), usecase.GenerateCodeInput{Name: r.GetParam("name")})
	if err != nil {
		return nil, err
	}

	resp := CodeResponse{Name: out.Name, Kind: out.Kind.String(), Code: out.Code}
	if out.Kind == otp.KindHOTP {
		resp.Counter = &out.Counter
	} else {
		resp.TimeRemaining = &out.TimeRemaining
	}

	return resp, nil
}

// Validate checks a code against a key.
// @Summary Validate code
// @Description TOTP accepts adjacent time steps; HOTP resynchronizes within the look-ahead window.
// @Tags Codes
// @Accept json
// @Produce json
// @Param name path string true "Key name"
// @Param request body ValidateRequest true "Code payload"
// @Success 200 {object} router.successResponse{data=ValidateResponse} "Verdict"
// @Failure 400 {object} router.errorResponse "Malformed code"
// @Failure 404 {object} router.errorResponse "Key not found"
// @Failure 409 {object} router.errorResponse "Counter changed concurrently"
// @Router /api/v1/validate/{name} [post]
func (h *HTTPEndpoint) Validate(r *router.Request) (any, error) {
	var req ValidateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.ValidateCode(r.Context(), usecase.ValidateCodeInput{
		Name: r.GetParam("name"),
		Code: req.Code,
	})
	if err != nil {
		return nil, err
	}

	resp := ValidateResponse{Name: out.Name, Kind: out.Kind.String(), Valid: out.Valid()}
	if out.HOTP != nil {
		resp.Counter = &out.HOTP.Counter
	}
	if out.TOTP != nil {
		resp.TimeRemaining = &out.TOTP.TimeRemaining
	}

	return resp, nil
}

func (h *HTTPEndpoint) URI(r *router.Request) (any, error) {
	out, err := h.uc.CredentialURI(r.Context(), usecase.CredentialURIInput{Name: r.GetParam("name")})
	if err != nil {
		return nil, err
	}

	return URIResponse{Name: out.Name, URI: out.URI}, nil
}

// QRCode renders the otpauth URI of a key as a PNG.
// @Summary QR code
// @Tags Keys
// @Produce png
// @Param name path string true "Key name"
// @Param size query int false "Edge length in pixels (64-2048)"
// @Success 200 {file} binary "PNG image"
// @Failure 404 {object} router.errorResponse "Key not found"
// @Router /api/v1/keys/{name}/qr [get]
func (h *HTTPEndpoint) QRCode(r *router.Request) (any, error) {
	size, err := r.GetQueryInt("size", 0)
	if err != nil {
		return nil, err
	}

	name := r.GetParam("name")
	png, err := h.uc.CredentialQRCode(r.Context(), usecase.CredentialQRCodeInput{Name: name, Size: size})
	if err != nil {
		return nil, err
	}

	return &router.RawResponse{ContentType: "image/png", Body: png, Filename: url.PathEscape(name) + ".png"}, nil
}
