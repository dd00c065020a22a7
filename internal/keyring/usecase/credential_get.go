package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
)

type GetCredentialInput struct {
	Name string `validate:"required"`
}

type ListCredentialsInput struct {
	Kind   string `validate:"omitempty,oneof=totp hotp"`
	Issuer string `validate:"omitempty,label"`
}

func (s *Usecase) GetCredential(ctx context.Context, in GetCredentialInput) (*entity.Credential, error) {
	ctx, span := s.startSpan(ctx, "GetCredential")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	return s.getCredential(ctx, in.Name)
}

// ListCredentials returns credentials newest first, optionally filtered by kind and issuer.
func (s *Usecase) ListCredentials(ctx context.Context, in ListCredentialsInput) ([]entity.Credential, error) {
	ctx, span := s.startSpan(ctx, "ListCredentials")
	defer span.End()

	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Issuer = strings.TrimSpace(in.Issuer)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	creds, err := s.repoDB.ListCredentials(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list credentials", "error", err)
		return nil, goerror.NewServer(err)
	}

	creds = lo.Filter(creds, func(c entity.Credential, _ int) bool {
		if in.Kind != "" && c.Kind.String() != in.Kind {
			return false
		}
		return in.Issuer == "" || c.Issuer == in.Issuer
	})

	return creds, nil
}
