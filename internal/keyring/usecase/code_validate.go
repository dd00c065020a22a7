package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/authhelper/internal/keyring/entity"
	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
	"github.com/shandysiswandi/authhelper/internal/pkg/otp"
)

const conflictRetryDelay = 5 * time.Millisecond

type ValidateCodeInput struct {
	Name string `validate:"required"`
	Code string
}

// ValidateCodeOutput carries exactly one of TOTP or HOTP, matching Kind.
type ValidateCodeOutput struct {
	Name string
	Kind otp.Kind
	TOTP *entity.TOTPVerdict
	HOTP *entity.HOTPVerdict
}

func (o *ValidateCodeOutput) Valid() bool {
	if o.TOTP != nil {
		return o.TOTP.Valid
	}
	return o.HOTP != nil && o.HOTP.Valid
}

// ValidateCode checks a candidate code against the stored credential. A HOTP
// match advances the stored counter past the matched value.
func (s *Usecase) ValidateCode(ctx context.Context, in ValidateCodeInput) (*ValidateCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "ValidateCode")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	// the exact length depends on the stored digits, checked again below
	if len(in.Code) < otp.MinDigits || len(in.Code) > otp.MaxDigits || otp.CheckCodeFormat(in.Code, len(in.Code)) != nil {
		return nil, errCodeFormat()
	}

	cred, err := s.getCredential(ctx, in.Name)
	if err != nil {
		return nil, err
	}

	if err := otp.CheckCodeFormat(in.Code, cred.Digits); err != nil {
		return nil, errCodeFormat()
	}

	out := &ValidateCodeOutput{Name: cred.Name, Kind: cred.Kind}
	if cred.IsHOTP() {
		out.HOTP, err = s.validateHOTP(ctx, cred, in.Code)
	} else {
		out.TOTP, err = s.validateTOTP(ctx, cred, in.Code)
	}
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Usecase) validateTOTP(ctx context.Context, cred *entity.Credential, code string) (*entity.TOTPVerdict, error) {
	now := s.clock.Now().Unix()
	current := otp.TimeStep(now, cred.Period)

	step, ok, err := otp.MatchTOTP(cred.Secret, code, cred.Algorithm, cred.Digits, current, s.uintConfig("keyring.totp.skew", defaultTOTPSkew))
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute totp code", "name", cred.Name, "error", err)
		return nil, goerror.NewServer(err)
	}
	if ok {
		slog.DebugContext(ctx, "totp code matched", "name", cred.Name, "drift", int64(step)-int64(current))
	}

	return &entity.TOTPVerdict{Valid: ok, TimeRemaining: otp.TimeRemaining(now, cred.Period)}, nil
}

func (s *Usecase) validateHOTP(ctx context.Context, cred *entity.Credential, code string) (*entity.HOTPVerdict, error) {
	window := s.uintConfig("keyring.hotp.window", defaultHOTPWindow)

	var verdict *entity.HOTPVerdict
	err := s.withCounterRetry(ctx, cred, func(ctx context.Context, cred *entity.Credential) error {
		k, ok, err := otp.MatchHOTP(cred.Secret, code, cred.Algorithm, cred.Digits, cred.Counter, window)
		if err != nil {
			slog.ErrorContext(ctx, "failed to compute hotp code", "name", cred.Name, "error", err)
			return goerror.NewServer(err)
		}
		if !ok {
			verdict = &entity.HOTPVerdict{Valid: false, Counter: cred.Counter}
			return nil
		}

		next := cred.Counter + k + 1
		if err := s.advanceCounter(ctx, cred, next, "validate"); err != nil {
			return err
		}

		verdict = &entity.HOTPVerdict{Valid: true, Counter: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return verdict, nil
}

// withCounterRetry runs fn against cred and, after each lost counter race,
// against a freshly loaded copy, up to keyring.validate.max_conflict_retries times.
func (s *Usecase) withCounterRetry(ctx context.Context, cred *entity.Credential, fn func(context.Context, *entity.Credential) error) error {
	backoff := retry.WithMaxRetries(
		s.uintConfig("keyring.validate.max_conflict_retries", defaultMaxConflictRetries),
		retry.NewConstant(conflictRetryDelay),
	)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			fresh, err := s.getCredential(ctx, cred.Name)
			if err != nil {
				return err
			}
			cred = fresh
		}
		attempt++

		return fn(ctx, cred)
	})

	if errors.Is(err, entity.ErrConflict) {
		slog.WarnContext(ctx, "counter conflict retries exhausted", "name", cred.Name, "attempts", attempt)
	}
	return err
}

// advanceCounter moves the stored counter from cred.Counter to next. A lost
// race is returned as retryable.
func (s *Usecase) advanceCounter(ctx context.Context, cred *entity.Credential, next uint64, reason string) error {
	if next > entity.MaxCounter {
		slog.WarnContext(ctx, "hotp counter exhausted", "name", cred.Name, "counter", cred.Counter)
		return goerror.NewBusinessCause(entity.ErrInvalidParameters, "Credential counter is exhausted", goerror.CodeInvalidInput)
	}

	err := s.repoDB.AdvanceCounter(ctx, cred.Name, cred.Counter, next)
	switch {
	case err == nil:
		s.publishCounterAdvanced(ctx, cred, next, reason)
		return nil

	case errors.Is(err, entity.ErrConflict):
		slog.InfoContext(ctx, "hotp counter changed concurrently", "name", cred.Name, "expected", cred.Counter)
		return retry.RetryableError(errCounterConflict())

	case errors.Is(err, goerror.ErrNotFound):
		slog.WarnContext(ctx, "credential deleted before counter advance", "name", cred.Name)
		return errCredentialNotFound()

	case errors.Is(err, entity.ErrInvalidParameters):
		slog.WarnContext(ctx, "credential is not counter based", "name", cred.Name)
		return goerror.NewBusinessCause(entity.ErrInvalidParameters, "Credential is not counter based", goerror.CodeInvalidInput)

	default:
		slog.ErrorContext(ctx, "failed to repo advance counter", "name", cred.Name, "error", err)
		return goerror.NewServer(err)
	}
}
