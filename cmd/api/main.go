package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowface/api/auth"
	"github.com/glowface/api/broker"
	"github.com/glowface/api/config"
	"github.com/glowface/api/db"
	"github.com/glowface/api/exercise"
	"github.com/glowface/api/external"
	"github.com/glowface/api/profile"
	"github.com/glowface/api/progress"
	"github.com/glowface/api/subscription"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var err error

	// Determine running environment and initialize structural logger
	if config.Environment(os.Getenv("API_ENV")) == config.EnvProduction {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	cfg, err := config.Load(config.DotFile())
	if err != nil {
		logger.Fatal("Cannot load configurations",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: string(cfg.Environment),
		Release:     Version,
		Debug:       !cfg.Production(),
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	core, err := zapsentry.NewCore(zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
		},
	}, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot attach sentry to logger",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	gdb, err := db.New(logger, cfg.PostgresURI)
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	var ledger subscription.EventLedger
	if cfg.RedisURI != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisURI},
			Password: cfg.RedisPW,
			DB:       0,
		})
		if _, err := rdb.Ping().Result(); err != nil {
			logger.Fatal("Cannot connect to Redis",
				zap.Error(err),
			)
		}
		defer rdb.Close()

		redisLedger, err := subscription.NewRedisLedger(rdb, subscription.DefaultLedgerTTL)
		if err != nil {
			logger.Fatal("Cannot initialize event ledger",
				zap.Error(err),
			)
		}
		ledger = redisLedger
	} else {
		logger.Warn("REDIS_URI is not set, redelivered webhooks will be dispatched again")
	}

	var notifier broker.Publisher = broker.NopPublisher{}
	if cfg.AMQPURI != "" {
		amqpBroker, err := broker.NewAMQPBroker(cfg.AMQPURI)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()
		notifier = amqpBroker
	}

	var authenticator *auth.Auth
	if cfg.AuthJWTSecret != "" {
		authenticator, err = auth.New(auth.Options{
			Logger:        logger,
			JWTSigningKey: cfg.AuthJWTSecret,
			Audience:      "authenticated",
		})
		if err != nil {
			logger.Fatal("Cannot initialize Auth",
				zap.Error(err),
			)
		}
	} else {
		logger.Warn("AUTH_JWT_SECRET is not set, only checkout and webhook routes are served")
	}

	subscriptionManager, err := subscription.NewManager(logger, gdb)
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	stripeClient := external.NewStripeClient(cfg.StripeSecretKey, logger)

	checkout, err := subscription.NewCheckout(subscription.CheckoutOptions{
		Sessions: stripeClient.CheckoutSessions,
		Prices: subscription.Prices{
			subscription.PlanMonthly: cfg.StripePriceMonthly,
			subscription.PlanAnnual:  cfg.StripePriceAnnual,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Checkout",
			zap.Error(err),
		)
	}

	reconciler, err := subscription.NewReconciler(subscription.ReconcilerOptions{
		Store:         subscriptionManager,
		WebhookSecret: cfg.StripeWebhookSecret,
		Tolerance:     cfg.WebhookTolerance,
		Ledger:        ledger,
		Notifier:      notifier,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Reconciler",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		Checkout:      checkout,
		Reconciler:    reconciler,
		Subscriptions: subscriptionManager,
		Auth:          authenticator,
		SiteURL:       cfg.SiteURL,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()
	rootRouter.Use(middleware.RequestID)
	rootRouter.Use(middleware.RealIP)
	rootRouter.Use(middleware.Recoverer)
	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootRouter.Mount("/api", subscriptionRouter.Router())

	if authenticator != nil {
		profileManager, err := profile.NewManager(logger, gdb)
		if err != nil {
			logger.Fatal("Cannot initialize ProfileManager",
				zap.Error(err),
			)
		}
		profileRouter, err := profile.NewService(profile.Options{
			Auth:     authenticator,
			Profiles: profileManager,
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize Profile Service Router",
				zap.Error(err),
			)
		}

		exerciseManager, err := exercise.NewManager(logger, gdb)
		if err != nil {
			logger.Fatal("Cannot initialize ExerciseManager",
				zap.Error(err),
			)
		}
		exerciseRouter, err := exercise.NewService(exercise.ServiceOptions{
			Auth:         authenticator,
			Catalog:      exerciseManager,
			Entitlements: subscriptionManager,
			Logger:       logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize Exercise Service Router",
				zap.Error(err),
			)
		}

		progressManager, err := progress.NewManager(logger, gdb)
		if err != nil {
			logger.Fatal("Cannot initialize ProgressManager",
				zap.Error(err),
			)
		}
		progressRouter, err := progress.NewService(progress.ServiceOptions{
			Auth:   authenticator,
			Store:  progressManager,
			Logger: logger,
		})
		if err != nil {
			logger.Fatal("Cannot initialize Progress Service Router",
				zap.Error(err),
			)
		}

		rootRouter.Mount("/api/profile", profileRouter.Router())
		rootRouter.Mount("/api/exercises", exerciseRouter.Router())
		rootRouter.Mount("/api/progress", progressRouter.Router())
	}

	srv := &http.Server{
		Handler:      rootRouter,
		Addr:         cfg.ListenAddr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("API listening",
			zap.String("Addr", cfg.ListenAddr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server stopped",
				zap.Error(err),
			)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Cannot shut down API server gracefully",
			zap.Error(err),
		)
	}
}
