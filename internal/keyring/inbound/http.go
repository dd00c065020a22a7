package inbound

import (
	"context"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/keyring/usecase"
	"github.com/shandysiswandi/authhelper/internal/pkg/router"
)

type uc interface {
	GenerateCredential(ctx context.Context, in usecase.GenerateCredentialInput) (*usecase.GenerateCredentialOutput, error)
	CreateCredential(ctx context.Context, in usecase.CreateCredentialInput) (*entity.Credential, error)
	ImportCredentialURI(ctx context.Context, in usecase.ImportCredentialURIInput) (*entity.Credential, error)
	ImportCredentialQR(ctx context.Context, in usecase.ImportCredentialQRInput) (*entity.Credential, error)

	ListCredentials(ctx context.Context, in usecase.ListCredentialsInput) ([]entity.Credential, error)
	GetCredential(ctx context.Context, in usecase.GetCredentialInput) (*entity.Credential, error)
	DeleteCredential(ctx context.Context, in usecase.DeleteCredentialInput) error

	GenerateCode(ctx context.Context, in usecase.GenerateCodeInput) (*usecase.GenerateCodeOutput, error)
	ValidateCode(ctx context.Context, in usecase.ValidateCodeInput) (*usecase.ValidateCodeOutput, error)

	CredentialURI(ctx context.Context, in usecase.CredentialURIInput) (*usecase.CredentialURIOutput, error)
	CredentialQRCode(ctx context.Context, in usecase.CredentialQRCodeInput) ([]byte, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/health", end.Health)

	// Issuance
	r.POST("/api/v1/keys/generate", end.Generate)
	r.POST("/api/v1/keys", end.Create)
	r.POST("/api/v1/keys/uri", end.ImportURI)
	r.POST("/api/v1/keys/qr", end.ImportQR)

	// Key ring
	r.GET("/api/v1/keys", end.List)
	r.GET("/api/v1/keys/:name", end.Detail)
	r.DELETE("/api/v1/keys/:name", end.Delete)
	r.GET("/api/v1/keys/:name/uri", end.URI)
	r.GET("/api/v1/keys/:name/qr", end.QRCode)

	// Codes
	r.GET("/api/v1/keys/:name/otp", end.Code)
	// outside /keys/ because the POST tree already has static children there
	r.POST("/api/v1/validate/:name", end.Validate)
}
