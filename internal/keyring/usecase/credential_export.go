package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/qrcode"
)

type CredentialURIInput struct {
	Name string `validate:"required"`
}

type CredentialURIOutput struct {
	Name string
	URI  string
}

type CredentialQRCodeInput struct {
	Name string `validate:"required"`
	// Size is the PNG edge in pixels; zero uses keyring.qr.size.
	Size int `validate:"omitempty,min=64,max=2048"`
}

// CredentialURI re-exports the enrolment URI of a stored credential.
func (s *Usecase) CredentialURI(ctx context.Context, in CredentialURIInput) (*CredentialURIOutput, error) {
	ctx, span := s.startSpan(ctx, "CredentialURI")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cred, err := s.getCredential(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	return &CredentialURIOutput{Name: cred.Name, URI: cred.URI()}, nil
}

// CredentialQRCode renders the enrolment URI as a PNG QR code.
func (s *Usecase) CredentialQRCode(ctx context.Context, in CredentialQRCodeInput) ([]byte, error) {
	ctx, span := s.startSpan(ctx, "CredentialQRCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cred, err := s.getCredential(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	size := in.Size
	if size == 0 {
		size = s.qrSize()
	}

	png, err := qrcode.Encode(cred.URI(), size)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode qr code", "name", cred.Name, "error", err)
		return nil, goerror.NewServer(err)
	}

	return png, nil
}
