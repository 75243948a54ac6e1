// README: Entry point; loads config, wires services, starts HTTP server and the expiry reminder job.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"homeserve/internal/config"
	httptransport "homeserve/internal/http"
	"homeserve/internal/infra"
	"homeserve/internal/jobs"
	"homeserve/internal/logger"
	"homeserve/internal/maps"
	"homeserve/internal/metrics"
	"homeserve/internal/modules/booking"
	"homeserve/internal/modules/location"
	"homeserve/internal/modules/matching"
	"homeserve/internal/modules/notify"
	"homeserve/internal/modules/provider"
)

const shutdownGrace = 15 * time.Second

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "homeserve-api",
	Short: "Provider matching and dispatch API",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional; real environment wins.
	_ = godotenv.Load()
	if cfgPath == "" {
		cfgPath = os.Getenv("HOMESERVE_CONFIG")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.Logging.Level)
	log := logger.New("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		return errors.New("HOMESERVE_FIREBASE__PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return fmt.Errorf("firebase init: %w", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return fmt.Errorf("firebase auth: %w", err)
	}

	rec, err := metrics.New()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}

	mapsClient, err := maps.NewClient(maps.Options{
		APIKey:   cfg.Maps.APIKey,
		Language: cfg.Maps.Language,
		Region:   cfg.Maps.Region,
		Timeout:  cfg.Maps.Timeout,
	})
	if err != nil {
		return err
	}
	if cfg.Maps.APIKey == "" {
		log.Warnf("maps api key not set; matching falls back to locality")
	}

	geocoder := location.NewGeocoder(mapsClient, logger.New("geocoder"), rec)
	resolver := location.NewDistanceResolver(mapsClient, location.NewDistanceCache(), location.RetryPolicy{
		Attempts: cfg.Matching.RetryAttempts,
		Delay:    cfg.Matching.RetryDelay,
	}, logger.New("distance"), rec)
	proximity := location.DefaultProximityChain(resolver, cfg.Matching.MaxDistanceMeters())

	var publishers []notify.Publisher
	fanoutOpts := []notify.FanoutOption{notify.WithTimeout(cfg.Notify.PublishTimeout), notify.WithMetrics(rec)}
	if redisClient != nil {
		defer redisClient.Close()
		publishers = append(publishers, notify.NewRedisPublisher(redisClient, cfg.Notify.ChannelPrefix))
		fanoutOpts = append(fanoutOpts, notify.WithDeduper(notify.NewRedisDeduper(redisClient, cfg.Notify.ChannelPrefix)))
	}
	if cfg.Firebase.FCMEnabled {
		fcm, err := infra.NewMessagingClient(ctx, app)
		if err != nil {
			return fmt.Errorf("firebase messaging: %w", err)
		}
		publishers = append(publishers, notify.NewFCMPublisher(fcm))
	}
	if len(publishers) == 0 {
		publishers = append(publishers, notify.NewLogPublisher(logger.New("notify")))
	}
	fanout := notify.NewFanout(notify.NewMultiPublisher(publishers...), logger.New("notify"), fanoutOpts...)
	defer fanout.Close()

	providerStore := provider.NewStore(dbPool)
	bookingStore := booking.NewStore(dbPool)

	bookingSvc := booking.NewService(bookingStore, logger.New("booking"))
	subscriptionSvc := provider.NewSubscriptionService(providerStore, logger.New("subscription"))
	matchingSvc := matching.NewService(matching.Deps{
		Providers: providerStore,
		Bookings:  bookingStore,
		Geocoder:  geocoder,
		Proximity: proximity,
		Notifier:  fanout,
		Logger:    logger.New("matching"),
		Metrics:   rec,
	}, cfg.Matching)

	reminder := jobs.NewExpiryReminderJob(providerStore, fanout, cfg.Jobs.ExpiryReminderSpec, logger.New("expiry-reminder"))
	if err := reminder.Start(); err != nil {
		return fmt.Errorf("expiry reminder: %w", err)
	}
	defer reminder.Stop()

	server := httptransport.NewServer(httptransport.ServerDeps{
		Matching:      matchingSvc,
		Bookings:      bookingSvc,
		Subscriptions: subscriptionSvc,
		Verifier:      verifier,
		Gatherer:      prometheus.DefaultGatherer,
		Logger:        logger.New("http"),
	})
	return server.ListenAndServe(ctx, cfg.HTTP.Addr, shutdownGrace)
}
