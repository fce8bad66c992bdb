package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	SeatStoreCRDB  = "crdb"
	SeatStoreRedis = "redis"

	PaymentMock   = "mock"
	PaymentStripe = "stripe"
)

type Config struct {
	HTTPAddr            string
	CRDBDSN             string
	MongoURI            string
	MongoDB             string
	RedisAddr           string
	RabbitURL           string
	JWTPublicKey        string
	HoldTTL             time.Duration
	PaymentTimeout      time.Duration
	SweepInterval       time.Duration
	SeatStore           string
	PaymentProvider     string
	StripeKey           string
	StripePaymentMethod string
	OTLPEndpoint        string
	LogLevel            string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		CRDBDSN:             os.Getenv("CRDB_DSN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getenv("MONGO_DB", "booking"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		JWTPublicKey:        os.Getenv("JWT_PUBLIC_KEY"),
		HoldTTL:             duration("HOLD_TTL", 5*time.Minute),
		PaymentTimeout:      duration("PAYMENT_TIMEOUT", 30*time.Second),
		SweepInterval:       duration("SWEEP_INTERVAL", time.Minute),
		SeatStore:           getenv("SEAT_STORE", SeatStoreCRDB),
		PaymentProvider:     getenv("PAYMENT_PROVIDER", PaymentMock),
		StripeKey:           os.Getenv("STRIPE_KEY"),
		StripePaymentMethod: getenv("STRIPE_PAYMENT_METHOD", "pm_card_visa"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings under which a held seat could expire while its
// payment is still in flight.
func (c *Config) Validate() error {
	if c.PaymentTimeout >= c.HoldTTL {
		return errors.Newf("PAYMENT_TIMEOUT (%s) must be shorter than HOLD_TTL (%s)", c.PaymentTimeout, c.HoldTTL)
	}
	switch c.SeatStore {
	case SeatStoreCRDB, SeatStoreRedis:
	default:
		return errors.Newf("unknown SEAT_STORE %q", c.SeatStore)
	}
	switch c.PaymentProvider {
	case PaymentMock:
	case PaymentStripe:
		if c.StripeKey == "" {
			return errors.New("STRIPE_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	default:
		return errors.Newf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return def
	}
	return d
}
