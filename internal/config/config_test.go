package config_test

import (
	"testing"
	"time"

	"github.com/robertarktes/movie-ticket-booking/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOLD_TTL", "")
	t.Setenv("PAYMENT_TIMEOUT", "")
	t.Setenv("SEAT_STORE", "")
	t.Setenv("PAYMENT_PROVIDER", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 30*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, config.SeatStoreCRDB, cfg.SeatStore)
	assert.Equal(t, config.PaymentMock, cfg.PaymentProvider)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "2m")
	t.Setenv("PAYMENT_TIMEOUT", "10s")
	t.Setenv("SEAT_STORE", "redis")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.HoldTTL)
	assert.Equal(t, 10*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, config.SeatStoreRedis, cfg.SeatStore)
}

func TestValidate(t *testing.T) {
	base := config.Config{
		HoldTTL:         time.Minute,
		PaymentTimeout:  10 * time.Second,
		SeatStore:       config.SeatStoreCRDB,
		PaymentProvider: config.PaymentMock,
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *config.Config) {}},
		{
			name:    "payment timeout outlives hold",
			mutate:  func(c *config.Config) { c.PaymentTimeout = time.Minute },
			wantErr: "must be shorter than HOLD_TTL",
		},
		{
			name:    "unknown seat store",
			mutate:  func(c *config.Config) { c.SeatStore = "etcd" },
			wantErr: "unknown SEAT_STORE",
		},
		{
			name:    "stripe without key",
			mutate:  func(c *config.Config) { c.PaymentProvider = config.PaymentStripe },
			wantErr: "STRIPE_KEY is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
