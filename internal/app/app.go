package app

import (
	"context"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/authhelper/internal/keyring/outbound/db"
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

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	uuid      uid.StringID
	random    io.Reader

	// resources
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	store     db.Store
	messaging messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	// released in reverse registration order
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// New wires every dependency from config. Any failure is logged and exits the
// process, since the service cannot run partially configured.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initCache()
	app.initStore()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()

	return app
}

// onClose registers fn to run on Stop. Each init step registers its own
// resource so Stop unwinds them like deferred calls.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}
