package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
	"github.com/shandysiswandi/authhelper/internal/pkg/qrcode"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
)

type ImportCredentialURIInput struct {
	URI string `validate:"required,max=4096"`
	// Name overrides the label carried by the URI.
	Name string `validate:"omitempty,label"`
}

type ImportCredentialQRInput struct {
	Image []byte `validate:"required"`
	Name  string `validate:"omitempty,label"`
}

func (s *Usecase) ImportCredentialURI(ctx context.Context, in ImportCredentialURIInput) (*entity.Credential, error) {
	ctx, span := s.startSpan(ctx, "ImportCredentialURI")
	defer span.End()

	in.URI = strings.TrimSpace(in.URI)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, invalidParameters(err)
	}

	return s.importURI(ctx, in.URI, in.Name, entity.SourceURI)
}

// ImportCredentialQR decodes an otpauth URI from a QR image and stores it.
func (s *Usecase) ImportCredentialQR(ctx context.Context, in ImportCredentialQRInput) (*entity.Credential, error) {
	ctx, span := s.startSpan(ctx, "ImportCredentialQR")
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, invalidParameters(err)
	}

	uri, err := qrcode.Decode(bytes.NewReader(in.Image))
	if errors.Is(err, qrcode.ErrInvalidImage) {
		slog.WarnContext(ctx, "uploaded file is not an image", "error", err)
		return nil, goerror.NewInvalidFormatCause(err, "Invalid image")
	}
	if errors.Is(err, qrcode.ErrNotFound) {
		slog.WarnContext(ctx, "no qr code found in uploaded image")
		return nil, goerror.NewInvalidFormatCause(err, "No QR code found in image")
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode qr image", "error", err)
		return nil, goerror.NewServer(err)
	}

	return s.importURI(ctx, uri, in.Name, entity.SourceQR)
}

func (s *Usecase) importURI(ctx context.Context, uri, name string, source entity.Source) (*entity.Credential, error) {
	p, err := otp.ParseURI(uri)
	if errors.Is(err, otp.ErrInvalidSecretEncoding) {
		return nil, goerror.NewInvalidFormatCause(entity.ErrInvalidSecretEncoding, "Secret must be base32 encoded")
	}
	if err != nil {
		slog.WarnContext(ctx, "malformed otpauth uri", "source", source, "error", err)
		return nil, goerror.NewInvalidFormatCause(entity.ErrMalformedURI, "Malformed otpauth URI")
	}

	if name == "" {
		name = p.Name
	}
	if name == "" {
		return nil, invalidParameters(validator.V10ValidationError{"name": "name must be provided or encoded in the URI"})
	}

	return s.createCredential(ctx, CreateCredentialInput{
		Name:      name,
		Secret:    otp.EncodeSecret(p.Secret),
		Kind:      p.Kind.String(),
		Algorithm: p.Algorithm.String(),
		Digits:    p.Digits,
		Period:    p.Period,
		Counter:   p.Counter,
		Issuer:    p.Issuer,
	}, source)
}
