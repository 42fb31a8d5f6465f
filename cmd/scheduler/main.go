package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/calendar"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/config"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/dedup"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/extract"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/gmail"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/metrics"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/pipeline"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/server"
	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/watch"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Gmail Calendar Scheduler")

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Google.Timezone)
	if err != nil {
		logrus.Fatalf("Invalid timezone %q: %v", cfg.Google.Timezone, err)
	}
	logrus.Infof("Timezone: %s", cfg.Google.Timezone)

	// Dedup store: in-memory by default, database-backed when configured
	var store dedup.Store
	if cfg.Database.DSN != "" {
		gormStore, err := dedup.NewGormStore(cfg.Database.DSN)
		if err != nil {
			logrus.Fatalf("Failed to initialize dedup store: %v", err)
		}
		store = gormStore
		logrus.Info("Using database-backed dedup store")
	} else {
		store = dedup.NewMemoryStore()
		logrus.Info("Using in-memory dedup store (history lost on restart)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logrus.Info("Authenticating with Google")
	session, err := gmail.NewSession(ctx, cfg.Google.ClientSecretFile, cfg.Google.TokenFile, cfg.Google.Scopes)
	if err != nil {
		logrus.Fatalf("Gmail authentication failed: %v", err)
	}

	calClient, err := calendar.NewClient(ctx, cfg.Google.ClientSecretFile, cfg.Google.TokenFile,
		cfg.Google.Timezone, cfg.Google.Scopes)
	if err != nil {
		logrus.Fatalf("Calendar authentication failed: %v", err)
	}

	var classifier extract.Classifier
	if c := extract.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Model); c != nil {
		classifier = c
		logrus.Infof("AI mode: %s via %s", cfg.Classifier.Model, cfg.Classifier.Endpoint)
	} else {
		logrus.Info("AI mode: regex-only (no classifier endpoint configured)")
	}

	engine := extract.NewEngine(classifier, cfg.Classifier.Timeout, loc)
	fetcher := gmail.NewFetcher(session, store, cfg.Fetch.MaxAttempts, cfg.Fetch.InitialDelay)
	m := metrics.NewMetrics()
	pipe := pipeline.New(fetcher, engine, calClient, m, loc, cfg.Fetch.Limit)

	// Watch registration must succeed before anything else: without it
	// no notifications will ever arrive.
	renewer := watch.NewRenewer(session, cfg.Project.TopicName())
	if _, err := renewer.Register(ctx); err != nil {
		logrus.Fatalf("Failed to start Gmail watch: %v", err)
	}
	if err := renewer.Start(); err != nil {
		logrus.Fatalf("Failed to start watch renewer: %v", err)
	}

	// Health and metrics HTTP surface
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.New(store).Router(),
	}
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Sweep unread mail that arrived before this run started
	pipe.ProcessBacklog(ctx)

	subscriber, err := newSubscriberClient(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to create Pub/Sub client: %v", err)
	}

	// Cancel the receive context on interrupt for ordered shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logrus.Info("Stopping listener")
		cancel()
	}()

	logrus.Info("Listening for Gmail notifications")
	sub := subscriber.Subscription(cfg.Project.Subscription)
	err = sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		pipe.HandleNotification(msgCtx, msg.Data, msg.Ack)
	})
	if err != nil {
		logrus.Errorf("Streaming error: %v", err)
	}

	if err := renewer.Stop(); err != nil {
		logrus.Errorf("Failed to stop watch renewer: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := subscriber.Close(); err != nil {
		logrus.Errorf("Failed to close Pub/Sub client: %v", err)
	}

	logrus.Infof("Listener stopped cleanly, total mails processed: %d", store.Count())
}

// newSubscriberClient builds the Pub/Sub client, preferring the service
// account key file when it exists on disk.
func newSubscriberClient(ctx context.Context, cfg *config.Config) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if _, err := os.Stat(cfg.Google.ServiceAccountFile); err == nil {
		opts = append(opts, option.WithCredentialsFile(cfg.Google.ServiceAccountFile))
	} else {
		logrus.Warnf("Service account key not found at %s, falling back to default credentials",
			cfg.Google.ServiceAccountFile)
	}
	return pubsub.NewClient(ctx, cfg.Project.ID, opts...)
}
