// The worker owns the background side of the system: expiring unpaid
// bookings, drifting demand factors and delivering notification emails.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/email"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/payment"
	"github.com/Domenick1991/flightbooking/internal/reaper"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
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

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	flightRepo := repository.NewFlightRepository(pool)
	inventory := repository.NewInventoryStore(pool)
	seats := repository.NewSeatMapRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)

	flightService := flights.NewFlightService(flightRepo, inventory, seats, redisCache, logger)
	bookingService := booking.NewBookingService(
		flightRepo, inventory, seats, bookingRepo, paymentRepo,
		payment.NewSimulatedGateway(cfg.Payment.DeclineRate),
		nil, producer, logger,
		booking.Config{
			BookingTopic:       cfg.Kafka.BookingEventsTopic,
			NotificationsTopic: cfg.Kafka.NotificationsTopic,
			PendingGrace:       cfg.Booking.PendingGrace(),
		},
	)

	expirer := reaper.NewTask("expire-pending",
		time.Duration(cfg.Worker.ExpirationSweepMinutes)*time.Minute,
		bookingService.ExpirePending, logger)
	expirer.Start(ctx)
	defer expirer.Stop()

	demand := reaper.NewTask("demand-refresh",
		time.Duration(cfg.Worker.DemandRefreshMinutes)*time.Minute,
		flightService.RefreshDemand, logger)
	demand.Start(ctx)
	defer demand.Stop()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(logger)
	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Warn("skipping undecodable event", zap.Error(err))
				return nil
			}
			return sender.Send(ctx, event)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.Int("expiration_sweep_minutes", cfg.Worker.ExpirationSweepMinutes),
		zap.Int("demand_refresh_minutes", cfg.Worker.DemandRefreshMinutes),
	)
	<-ctx.Done()
	logger.Info("worker shutting down")
}
