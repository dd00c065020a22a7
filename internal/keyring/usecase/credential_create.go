package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

type CreateCredentialInput struct {
	Name      string `validate:"required,label"`
	Secret    string `validate:"required,max=1024"`
	Kind      string `validate:"required,oneof=totp hotp"`
	Algorithm string `validate:"omitempty,oneof=SHA1 SHA256 SHA512"`
	Digits    int    `validate:"omitempty,min=6,max=8"`
	Period    uint64 `validate:"omitempty,min=1,max=86400"`
	Counter   uint64 `validate:"lte=9223372036854775807"`
	Issuer    string `validate:"omitempty,label"`
}

func (in *CreateCredentialInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Issuer = strings.TrimSpace(in.Issuer)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Algorithm = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(in.Algorithm)), "-", "")
}

func (s *Usecase) CreateCredential(ctx context.Context, in CreateCredentialInput) (*entity.Credential, error) {
	ctx, span := s.startSpan(ctx, "CreateCredential")
	defer span.End()

	return s.createCredential(ctx, in, entity.SourceManual)
}

func (s *Usecase) createCredential(ctx context.Context, in CreateCredentialInput, source entity.Source) (*entity.Credential, error) {
	in.normalize()

	if err := s.validator.Validate(in); err != nil {
		return nil, invalidParameters(err)
	}

	secret, err := otp.DecodeSecret(in.Secret)
	if err != nil {
		return nil, goerror.NewInvalidFormatCause(entity.ErrInvalidSecretEncoding, "Secret must be base32 encoded")
	}

	cred := s.buildCredential(in, secret)
	if err := s.storeCredential(ctx, cred, source); err != nil {
		return nil, err
	}

	return &cred, nil
}

// buildCredential fills defaults. Input must already be validated.
func (s *Usecase) buildCredential(in CreateCredentialInput, secret []byte) entity.Credential {
	kind, _ := otp.ParseKind(in.Kind)
	alg, _ := otp.ParseAlgorithm(in.Algorithm)

	cred := entity.Credential{
		ID:        s.uuid.Generate(),
		Name:      in.Name,
		Secret:    secret,
		Kind:      kind,
		Algorithm: alg,
		Digits:    in.Digits,
		Issuer:    in.Issuer,
		CreatedAt: s.now(),
	}
	if cred.Digits == 0 {
		cred.Digits = otp.DefaultDigits
	}

	if cred.IsHOTP() {
		cred.Counter = in.Counter
	} else {
		cred.Period = in.Period
		if cred.Period == 0 {
			cred.Period = s.defaultPeriod()
		}
	}

	return cred
}

func (s *Usecase) storeCredential(ctx context.Context, cred entity.Credential, source entity.Source) error {
	err := s.repoDB.CreateCredential(ctx, cred)
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "credential name already exists", "name", cred.Name)
		return goerror.NewBusinessCause(entity.ErrDuplicateName, "Credential name already exists", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create credential", "name", cred.Name, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential created", "name", cred.Name, "kind", cred.Kind, "source", source)

	ev := CredentialCreatedEvent{
		ID:        cred.ID,
		Name:      cred.Name,
		Kind:      cred.Kind,
		Issuer:    cred.Issuer,
		Source:    source,
		CreatedAt: cred.CreatedAt,
	}
	s.publish(ctx, "publish_credential_created", func(ctx context.Context) error {
		return s.repoMessaging.PublishCredentialCreated(ctx, ev)
	})

	return nil
}
