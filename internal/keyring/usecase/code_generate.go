package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

type GenerateCodeInput struct {
	Name string `validate:"required"`
}

type GenerateCodeOutput struct {
	Name string
	Kind otp.Kind
	Code string
	// TimeRemaining is set for TOTP.
	TimeRemaining uint64
	// Counter is the HOTP counter the code was computed at.
	Counter uint64
}

// GenerateCode produces the current code as the credential holder would. For
// HOTP the stored counter is consumed and advanced by one.
func (s *Usecase) GenerateCode(ctx context.Context, in GenerateCodeInput) (*GenerateCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "GenerateCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cred, err := s.getCredential(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	if !cred.IsHOTP() {
		now := s.clock.Now().Unix()
		code, err := otp.ComputeCode(cred.Secret, otp.TimeStep(now, cred.Period), cred.Algorithm, cred.Digits)
		if err != nil {
			slog.ErrorContext(ctx, "failed to compute totp code", "name", cred.Name, "error", err)
			return nil, goerror.NewServer(err)
		}

		return &GenerateCodeOutput{
			Name:          cred.Name,
			Kind:          cred.Kind,
			Code:          code,
			TimeRemaining: otp.TimeRemaining(now, cred.Period),
		}, nil
	}

	var out *GenerateCodeOutput
	err = s.withCounterRetry(ctx, cred, func(ctx context.Context, cred *entity.Credential) error {
		code, err := otp.ComputeCode(cred.Secret, cred.Counter, cred.Algorithm, cred.Digits)
		if err != nil {
			slog.ErrorContext(ctx, "failed to compute hotp code", "name", cred.Name, "error", err)
			return goerror.NewServer(err)
		}

		if err := s.advanceCounter(ctx, cred, cred.Counter+1, "generate"); err != nil {
			return err
		}

		out = &GenerateCodeOutput{Name: cred.Name, Kind: cred.Kind, Code: code, Counter: cred.Counter}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
