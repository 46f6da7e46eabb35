// Command notifyd runs the notification service: the fan-out coordinator,
// the websocket endpoint, the HTTP API and, when configured, the RabbitMQ
// intake consumer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrymomot/notifykit/internal/httpapi"
	"github.com/dmitrymomot/notifykit/internal/intake"
	"github.com/dmitrymomot/notifykit/internal/metrics"
	"github.com/dmitrymomot/notifykit/internal/store/postgres"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/recipients"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
	"github.com/dmitrymomot/notifykit/pkg/secrets"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Service  string `env:"SERVICE_NAME" envDefault:"notifyd"`
	LogLevel string `env:"LOG_LEVEL"`

	JWTSecret string `env:"JWT_SECRET,required"`

	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	WSRateLimit    float64  `env:"WS_RATE_LIMIT" envDefault:"10"`
	WSRateBurst    int      `env:"WS_RATE_BURST" envDefault:"20"`

	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// ChannelSecretsKey encrypts channel credentials at rest (base64, 32 bytes).
	ChannelSecretsKey string `env:"CHANNEL_SECRETS_KEY"`
	ChannelSeedFile   string `env:"CHANNEL_SEED_FILE"`
	// AccountsFile feeds the in-memory account store when postgres is off.
	AccountsFile   string `env:"ACCOUNTS_FILE"`
	TokenCacheSize int    `env:"WECHAT_TOKEN_CACHE_SIZE" envDefault:"256"`
	// MailDumpDir writes email channel output to files instead of SMTP or Postmark.
	MailDumpDir string `env:"MAIL_DUMP_DIR"`
}

type accountsFile struct {
	Accounts []recipients.Record `yaml:"accounts"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("notifyd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		cfg      appConfig
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
		queueCfg intake.Config
		accCfg   postgres.AccountsConfig
		rateCfg  ratelimiter.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&cfg) },
		func() error { return config.Load(&pgCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&queueCfg) },
		func() error { return config.Load(&accCfg) },
		func() error { return config.Load(&rateCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		logOpts = append(logOpts, logger.WithLevelString(cfg.LogLevel))
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth, err := jwt.NewFromString(cfg.JWTSecret)
	if err != nil {
		return err
	}

	var (
		messages  notifications.Storage = notifications.NewMemoryStorage()
		chanStore channels.Store        = channels.NewMemoryStore()
		logStore  deliverylog.Storage   = deliverylog.NewMemoryStorage()
		accounts  recipients.AccountStore
		health    = map[string]httpserver.Check{}
	)

	if pgCfg.Enabled() {
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}
		messages = postgres.NewMessageStorage(pool)
		chanStore = postgres.NewChannelStore(pool)
		logStore = postgres.NewDeliveryLogStorage(pool)
		accounts = postgres.NewAccountStore(pool, accCfg)
		health["postgres"] = pg.Healthcheck(pool)
	} else {
		log.Warn("PG_CONN_URL not set, using in-memory stores")
		var f accountsFile
		if cfg.AccountsFile != "" {
			if err := config.LoadYAML(cfg.AccountsFile, &f); err != nil {
				return fmt.Errorf("load accounts: %w", err)
			}
		}
		accounts = recipients.NewMemoryAccountStore(f.Accounts...)
	}

	if cfg.ChannelSecretsKey != "" {
		key, err := secrets.ParseKey(cfg.ChannelSecretsKey)
		if err != nil {
			return err
		}
		box, err := secrets.NewBox(key)
		if err != nil {
			return err
		}
		chanStore = channels.NewSealedStore(chanStore, box)
	}
	if cfg.ChannelSeedFile != "" {
		n, err := channels.SeedFromFile(ctx, chanStore, cfg.ChannelSeedFile)
		if err != nil {
			return fmt.Errorf("seed channels: %w", err)
		}
		log.Info("channels seeded", logger.Count("channels", n))
	}

	var (
		tokens    channels.TokenStore = channels.NewMemoryTokenStore(cfg.TokenCacheSize)
		rateStore ratelimiter.Store   = ratelimiter.NewMemoryStore()
	)
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		tokens = channels.NewRedisTokenStore(client, redisCfg.KeyPrefix)
		rateStore = ratelimiter.NewRedisStore(client, redisCfg.KeyPrefix)
		health["redis"] = redis.Healthcheck(client)
	}

	limiter, err := ratelimiter.NewBucket(rateStore, rateCfg)
	if err != nil {
		return err
	}

	auditWriter := deliverylog.NewAsyncWriter(logStore, deliverylog.AsyncOptions{})
	audit := deliverylog.NewLogger(auditWriter, deliverylog.WithLogger(log))

	m := metrics.New("notifykit")
	registry := realtime.NewRegistry(
		realtime.WithRegistryLogger(log),
		realtime.WithConnectionObserver(m.SetConnections),
	)

	var mailTransport channels.MailTransport
	if cfg.MailDumpDir != "" {
		mailTransport = channels.StaticMailTransport(email.NewDevSender(cfg.MailDumpDir))
		log.Warn("email channels write to disk", slog.String("dir", cfg.MailDumpDir))
	}

	sender := webhook.NewSender()
	coord, err := fanout.New(fanout.Deps{
		Resolver: recipients.NewResolver(accounts, recipients.WithLogger(log)),
		Storage:  messages,
		Pusher:   registry,
		Channels: chanStore,
		Sender: channels.NewRegistry(
			channels.NewDingTalkAdapter(sender),
			channels.NewWeComAdapter(sender),
			channels.NewEmailAdapter(mailTransport),
			channels.NewAliyunSMSAdapter(sender),
			channels.NewTencentSMSAdapter(sender),
			channels.NewWeChatTemplateAdapter(sender, tokens),
		),
		Audit: audit,
	},
		fanout.WithLogger(log),
		fanout.WithDispatchTimeout(cfg.DispatchTimeout),
		fanout.WithNotifyHook(m.ObserveNotify),
		fanout.WithOutcomeHook(m.ObserveOutcome),
	)
	if err != nil {
		return err
	}

	router, err := httpapi.NewRouter(httpapi.Deps{
		Auth:     auth,
		Service:  coord,
		Audit:    audit,
		Channels: chanStore,
		Realtime: realtime.NewHandler(registry, auth, messages,
			realtime.WithAllowedOrigins(cfg.AllowedOrigins...),
			realtime.WithRateLimit(cfg.WSRateLimit, cfg.WSRateBurst),
			realtime.WithHandlerLogger(log),
		),
		Pusher:  registry,
		Metrics: m,
		Limiter: limiter,
		Health:  health,
	}, log)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if queueCfg.Enabled() {
		consumer := intake.New(queueCfg, coord,
			intake.WithLogger(log),
			intake.WithResultHook(func(r intake.Result) { m.ObserveIntake(string(r)) }),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.Error("intake stopped", logger.Component("intake"), logger.Error(err))
			}
		}()
	}

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(registry.CloseAll),
	)
	runErr := srv.Run(ctx, router)
	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return errors.Join(
		runErr,
		coord.Shutdown(shutdownCtx),
		auditWriter.Close(shutdownCtx),
	)
}
