package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/authhelper/internal/pkg/goerror"
)

type DeleteCredentialInput struct {
	Name string `validate:"required"`
}

func (s *Usecase) DeleteCredential(ctx context.Context, in DeleteCredentialInput) error {
	ctx, span := s.startSpan(ctx, "DeleteCredential")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	cred, err := s.getCredential(ctx, in.Name)
	if err != nil {
		return err
	}

	err = s.repoDB.DeleteCredential(ctx, in.Name)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "credential deleted concurrently", "name", in.Name)
		return errCredentialNotFound()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete credential", "name", in.Name, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "credential deleted", "name", in.Name)

	ev := CredentialDeletedEvent{ID: cred.ID, Name: cred.Name, DeletedAt: s.now()}
	s.publish(ctx, "publish_credential_deleted", func(ctx context.Context) error {
		return s.repoMessaging.PublishCredentialDeleted(ctx, ev)
	})

	return nil
}
