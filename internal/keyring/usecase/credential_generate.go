package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/idempotency"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

type GenerateCredentialInput struct {
	IdempotencyKey string `validate:"omitempty,max=128"`
	Name           string `validate:"required,label"`
	Kind           string `validate:"required,oneof=totp hotp"`
	Algorithm      string `validate:"omitempty,oneof=SHA1 SHA256 SHA512"`
	Digits         int    `validate:"omitempty,min=6,max=8"`
	Period         uint64 `validate:"omitempty,min=1,max=86400"`
	Counter        uint64 `validate:"lte=9223372036854775807"`
	Issuer         string `validate:"omitempty,label"`
}

type GenerateCredentialOutput struct {
	Credential entity.Credential
	URI        string
	// Replayed is true when the result comes from an earlier request with the same idempotency key.
	Replayed bool
}

// GenerateCredential issues a credential with a freshly generated secret.
func (s *Usecase) GenerateCredential(ctx context.Context, in GenerateCredentialInput) (*GenerateCredentialOutput, error) {
	ctx, span := s.startSpan(ctx, "GenerateCredential")
	defer span.End()

	create := CreateCredentialInput{
		Name:      in.Name,
		Kind:      in.Kind,
		Algorithm: in.Algorithm,
		Digits:    in.Digits,
		Period:    in.Period,
		Counter:   in.Counter,
		Issuer:    in.Issuer,
	}
	create.normalize()
	if create.Issuer == "" {
		create.Issuer = s.cfg.GetString("keyring.issuer")
	}

	in.Name, in.Kind, in.Algorithm, in.Issuer = create.Name, create.Kind, create.Algorithm, create.Issuer
	if err := s.validator.Validate(in); err != nil {
		return nil, invalidParameters(err)
	}

	if in.IdempotencyKey == "" || s.idemp == nil {
		return s.issue(ctx, create)
	}

	var out *GenerateCredentialOutput
	ref, err := s.idemp.Exec(ctx, "keyring:generate:"+in.IdempotencyKey, func(ctx context.Context) (string, error) {
		res, err := s.issue(ctx, create)
		if err != nil {
			return "", err
		}
		out = res
		return res.Credential.Name, nil
	})

	switch {
	case err == nil:
		return out, nil

	case out != nil:
		// the credential is stored; only recording the outcome failed
		slog.WarnContext(ctx, "failed to mark idempotency key completed", "idempotency_key", in.IdempotencyKey, "name", out.Credential.Name, "error", err)
		return out, nil

	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		slog.InfoContext(ctx, "replaying idempotent credential generation", "idempotency_key", in.IdempotencyKey, "name", ref)
		cred, err := s.getCredential(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &GenerateCredentialOutput{Credential: *cred, URI: cred.URI(), Replayed: true}, nil

	case errors.Is(err, idempotency.ErrAlreadyInProgress), errors.Is(err, idempotency.ErrAlreadyFailed):
		slog.WarnContext(ctx, "idempotency key busy", "idempotency_key", in.IdempotencyKey, "error", err)
		return nil, goerror.NewBusiness("A request with the same idempotency key is being processed", goerror.CodeConflict)
	}

	var gerr *goerror.Error
	if errors.As(err, &gerr) {
		return nil, err
	}

	slog.ErrorContext(ctx, "failed to exec idempotent generation", "idempotency_key", in.IdempotencyKey, "error", err)
	return nil, goerror.NewUnavailable(err, "Idempotency store is unavailable, retry later")
}

func (s *Usecase) issue(ctx context.Context, in CreateCredentialInput) (*GenerateCredentialOutput, error) {
	secret, err := otp.GenerateSecret(s.random, s.cfg.GetInt("keyring.secret_size"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate secret", "error", err)
		return nil, goerror.NewServer(err)
	}

	cred := s.buildCredential(in, secret)
	if err := s.storeCredential(ctx, cred, entity.SourceGenerated); err != nil {
		return nil, err
	}

	return &GenerateCredentialOutput{Credential: cred, URI: cred.URI()}, nil
}
