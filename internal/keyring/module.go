package keyring

import (
	"io"

	"github.com/shandysiswandi/authhelper/internal/keyring/inbound"
	"github.com/shandysiswandi/authhelper/internal/keyring/outbound/db"
	"github.com/shandysiswandi/authhelper/internal/keyring/outbound/mq"
	"github.com/shandysiswandi/authhelper/internal/keyring/usecase"
	"github.com/shandysiswandi/authhelper/internal/pkg/clock"
	"github.com/shandysiswandi/authhelper/internal/pkg/config"
	"github.com/shandysiswandi/authhelper/internal/pkg/goroutine"
	"github.com/shandysiswandi/authhelper/internal/pkg/idempotency"
	"github.com/shandysiswandi/authhelper/internal/pkg/instrument"
	"github.com/shandysiswandi/authhelper/internal/pkg/messaging"
	"github.com/shandysiswandi/authhelper/internal/pkg/router"
	"github.com/shandysiswandi/authhelper/internal/pkg/uid"
	"github.com/shandysiswandi/authhelper/internal/pkg/validator"
)

type Dependency struct {
	Store     db.Store           `validate:"required"`
	Goroutine *goroutine.Manager `validate:"required"`
	Router    *router.Router     `validate:"required"`
	// Idempotency is nil when no redis is configured.
	Idempotency idempotency.Idempotency
	Messaging   messaging.Messaging        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Random      io.Reader                  `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        dep.Store,
		RepoMessaging: repoMsg,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		UUID:          dep.UUID,
		Clock:         dep.Clock,
		Random:        dep.Random,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
