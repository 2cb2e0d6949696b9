package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/auth"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/payment"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/cancellation"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/ticket"
	"github.com/Domenick1991/flightbooking/migrations"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	gateway := payment.NewSimulatedGateway(cfg.Payment.DeclineRate)

	flightRepo := repository.NewFlightRepository(pool)
	inventory := repository.NewInventoryStore(pool)
	seats := repository.NewSeatMapRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	archive := repository.NewCancellationArchive(pool)

	flightService := flights.NewFlightService(flightRepo, inventory, seats, redisCache, logger)
	bookingService := booking.NewBookingService(
		flightRepo, inventory, seats, bookingRepo, paymentRepo,
		gateway, redisCache, producer, logger,
		booking.Config{
			BookingTopic:       cfg.Kafka.BookingEventsTopic,
			NotificationsTopic: cfg.Kafka.NotificationsTopic,
			PendingGrace:       cfg.Booking.PendingGrace(),
			MaxRetries:         cfg.Booking.MaxCheckoutRetries,
			RetryBackoff:       cfg.Booking.RetryBackoff(),
		},
	)
	cancellationService := cancellation.NewCancellationService(
		flightRepo, inventory, seats, bookingRepo, paymentRepo, archive,
		gateway, producer, logger,
		cfg.Kafka.BookingEventsTopic, cfg.Kafka.NotificationsTopic,
	)

	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL())

	router := api.NewRouter(
		api.NewFlightHandler(flightService),
		api.NewBookingHandler(bookingService, cancellationService, flightService, ticket.NewGenerator()),
		tokens,
		logger,
	)

	logger.Info("starting http server", zap.String("address", cfg.HTTP.Address))
	if err := bootstrap.Run(ctx, cfg, router); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
