package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glowface/api/broker"
	"github.com/glowface/api/config"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

// routingKeys are the billing events this worker reports on
var routingKeys = []string{
	"checkout.session.completed",
	"customer.subscription.updated",
	"customer.subscription.deleted",
	"invoice.payment_succeeded",
	"invoice.payment_failed",
}

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

	cfg, err := config.LoadWorker(config.DotFile())
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
		Debug:       cfg.Environment == config.EnvDevelopment,
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
			"component": "worker",
		},
	}, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot attach sentry to logger",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	amqpBroker, err := broker.NewAMQPBroker(cfg.AMQPURI, routingKeys...)
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifications, err := amqpBroker.ReceiveNotifications(ctx)
	if err != nil {
		logger.Fatal("Cannot get message channel",
			zap.Error(err),
		)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range notifications {
			report(logger, n)
		}
	}()

	logger.Info("Worker consuming billing notifications")

	select {
	case <-c:
		cancel()
	case <-done:
		logger.Error("Notification channel closed by broker")
	}
}
