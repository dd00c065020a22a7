package app

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sethvargo/go-retry"
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
	"google.golang.org/api/option"
)

// bootstrap is read from the process environment before the config file exists.
type bootstrap struct {
	ConfigPath string `env:"CONFIG_PATH"`
	Local      bool   `env:"LOCAL" envDefault:"false"`
}

func (a *App) initConfig() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	var boot bootstrap
	if err := env.Parse(&boot); err != nil {
		slog.Error("failed to parse bootstrap env", "error", err)
		os.Exit(1)
	}

	path := boot.ConfigPath
	if path == "" {
		path = "/config/config.yaml"
		if boot.Local {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}

	if tz := cfg.GetString("app.tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			slog.Warn("unknown app.tz, keeping system zone", "tz", tz, "error", err)
		} else {
			time.Local = loc
		}
	}

	a.config = cfg
	a.onClose("config", func(context.Context) error { return cfg.Close() })
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
	a.onClose("instrument", ins.Shutdown)
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.random = rand.Reader
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator
}

// ping retries fn on a capped fibonacci backoff so dependencies started
// alongside the service get a moment to come up.
func (a *App) ping(name string, fn func(ctx context.Context) error) error {
	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithMaxRetries(a.config.GetUint64("app.startup.ping_retries"), b)
	b = retry.WithCappedDuration(2*time.Second, b)

	return retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := fn(pingCtx); err != nil {
			slog.WarnContext(ctx, "dependency not ready", "name", name, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// initCache connects redis when redis.url is set. Without it the idempotency
// header is ignored and the redis store driver is unavailable.
func (a *App) initCache() {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		return
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)
	if err := a.ping("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.onClose("redis", func(context.Context) error { return rdb.Close() })
	a.idemp = idempotency.New(rdb, a.config.GetString("redis.idempotency_prefix"))
}

func (a *App) initStore() {
	opts := db.Options{
		Driver:      strings.ToLower(strings.TrimSpace(a.config.GetString("store.driver"))),
		SQLitePath:  strings.TrimSpace(a.config.GetString("store.sqlite.path")),
		SQLiteName:  strings.TrimSpace(a.config.GetString("store.sqlite.name")),
		PostgresDSN: strings.TrimSpace(a.config.GetString("store.postgres.dsn")),
		RedisPrefix: a.config.GetString("store.redis.prefix"),
		Instrument:  a.ins,
	}
	if a.cacheConn != nil {
		opts.Redis = a.cacheConn
	}

	var store db.Store
	err := a.ping("store", func(ctx context.Context) error {
		s, err := db.Open(ctx, opts)
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		slog.Error("failed to init key store", "driver", opts.Driver, "error", err)
		os.Exit(1)
	}

	slog.Info("key store ready", "driver", opts.Driver)
	a.store = store
	a.onClose("store", func(context.Context) error { return store.Close() })
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")

	var pubsubOptions []option.ClientOption
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		pubsubOptions = append(pubsubOptions, option.WithEndpoint(v))
	}
	if a.config.GetBool("messaging.pubsub.without_auth") {
		pubsubOptions = append(pubsubOptions, option.WithoutAuthentication())
	}

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr: a.config.GetString("messaging.nsq.producer_addr"),
			ProducerConfig: func() *nsq.Config {
				cfg := nsq.NewConfig()
				cfg.DialTimeout = a.config.GetSecond("messaging.nsq.producer_config.dial_timeout_seconds")
				cfg.ReadTimeout = a.config.GetSecond("messaging.nsq.producer_config.read_timeout_seconds")
				cfg.WriteTimeout = a.config.GetSecond("messaging.nsq.producer_config.write_timeout_seconds")
				return cfg
			}(),
		},
		Kafka: messaging.KafkaConfig{
			Brokers:                a.config.GetArray("messaging.kafka.brokers"),
			AllowAutoTopicCreation: a.config.GetBool("messaging.kafka.allow_auto_topic_creation"),
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: pubsubOptions,
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
	a.onClose("messaging", func(context.Context) error { return client.Close() })
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{router.HeaderCorrelationID},
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}
