package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/movie-ticket-booking/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/movie-ticket-booking/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/movie-ticket-booking/internal/adapters/redis"
	"github.com/robertarktes/movie-ticket-booking/internal/booking"
	"github.com/robertarktes/movie-ticket-booking/internal/config"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	httphandler "github.com/robertarktes/movie-ticket-booking/internal/http"
	"github.com/robertarktes/movie-ticket-booking/internal/idempotency"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"github.com/robertarktes/movie-ticket-booking/internal/payment"
	"github.com/robertarktes/movie-ticket-booking/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const catalogCacheTTL = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "booking-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLoggerWithLevel(cfg.LogLevel)

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	if err := crdb.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("failed to migrate crdb: %v", err)
	}
	crdbRepo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)
	mongoCatalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	if err := mongoCatalog.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("failed to create mongo indexes: %v", err)
	}
	auditor := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		log.Fatalf("failed to instrument redis: %v", err)
	}
	catalog := redisadapter.NewCatalogCache(redisClient, mongoCatalog, catalogCacheTTL)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), 24*time.Hour, cfg.HoldTTL)
	rl := rateLimit.NewRateLimiter(redisClient)

	var seats domain.SeatStore = crdbRepo
	if cfg.SeatStore == config.SeatStoreRedis {
		seats = redisadapter.NewSeatStore(redisClient)
	}

	var payments domain.PaymentGateway = payment.NewMockGateway()
	if cfg.PaymentProvider == config.PaymentStripe {
		payments = payment.NewStripeGateway(cfg.StripeKey, cfg.StripePaymentMethod)
	}

	svc := booking.NewService(catalog, seats, crdbRepo, payments, logger,
		booking.WithAuditor(auditor),
		booking.WithPaymentTimeout(cfg.PaymentTimeout),
	)

	var auth *httphandler.Authenticator
	if cfg.JWTPublicKey != "" {
		auth, err = httphandler.NewAuthenticator(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("failed to load JWT key: %v", err)
		}
	} else {
		logger.Warn("JWT_PUBLIC_KEY not set, authentication disabled")
	}

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	checks := map[string]httphandler.ReadinessCheck{
		"crdb": crdbRepo.Ping,
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, readpref.Primary())
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if rabbitConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	}

	handlers := httphandler.NewHandlers(svc, checks)
	r := httphandler.SetupRouter(handlers, logger, rl, idemp, auth)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).WithField("seat_store", cfg.SeatStore).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	// In-flight bookings may be waiting on payment, so give them the full
	// payment timeout to finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PaymentTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
