package http

import (
	"bytes"
	"context"
	"crypto/rsa"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/idempotency"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	subjectKey
)

var discardLogger = observability.NewDiscardLogger()

func LoggerFromContext(ctx context.Context) observability.Logger {
	if l, ok := ctx.Value(loggerKey).(observability.Logger); ok {
		return l
	}
	return discardLogger
}

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := logger.WithField("request_id", middleware.GetReqID(r.Context())).
				WithField("method", r.Method).
				WithField("path", r.URL.Path)
			ctx := context.WithValue(r.Context(), loggerKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware counts requests by route pattern, not raw path, to keep
// label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
		LoggerFromContext(r.Context()).
			WithField("status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Debug("request served")
	})
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.request_id", middleware.GetReqID(r.Context())),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticator verifies RS256 bearer tokens. The subject claim is the user
// id the caller may act for.
type Authenticator struct {
	key *rsa.PublicKey
}

func NewAuthenticator(publicKeyPEM string) (*Authenticator, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, "parse JWT public key")
	}
	return &Authenticator{key: key}, nil
}

func (a *Authenticator) subject(raw string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.Subject)
}

// JWTMiddleware rejects requests without a valid token. A nil authenticator
// lets every request through, which is how local runs work.
func JWTMiddleware(auth *Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing bearer token"})
				return
			}
			sub, err := auth.subject(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				LoggerFromContext(r.Context()).WithError(err).Info("rejected token")
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid token"})
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorizedFor reports whether the caller may act for userID. Without
// authentication every caller may.
func authorizedFor(ctx context.Context, userID uuid.UUID) bool {
	sub, ok := ctx.Value(subjectKey).(uuid.UUID)
	return !ok || sub == userID
}

type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error)
}

// RateLimitMiddleware fails open when the limiter itself errors.
func RateLimitMiddleware(rl Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := "ip:" + r.RemoteAddr
			rate := 100
			if sub, ok := r.Context().Value(subjectKey).(uuid.UUID); ok {
				key, rate = "user:"+sub.String(), 10
			}
			ok, err := rl.Allow(r.Context(), key, rate, time.Minute)
			if err != nil {
				LoggerFromContext(r.Context()).WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				observability.RateLimitExceeded.Inc()
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too_many_requests", Message: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware requires an Idempotency-Key on POSTs and replays the
// stored response for a repeated key. Server faults are not stored so the
// client can retry them.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "missing Idempotency-Key"})
				return
			}
			if len(key) < idempotency.MinKeyLength {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid Idempotency-Key"})
				return
			}
			if idemp == nil {
				next.ServeHTTP(w, r)
				return
			}
			// Keys are per caller, so one subject never sees another's response.
			if sub, ok := r.Context().Value(subjectKey).(uuid.UUID); ok {
				key = sub.String() + ":" + key
			}

			log := LoggerFromContext(r.Context()).WithField("idempotency_key", key)
			existing, err := idemp.Get(r.Context(), key)
			if err != nil {
				log.WithError(err).Error("idempotency lookup")
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "idempotency store unavailable"})
				return
			}
			if existing != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(existing.Status)
				w.Write(existing.Result)
				return
			}

			if err := idemp.Begin(r.Context(), key); err != nil {
				if errors.Is(err, idempotency.ErrInFlight) {
					writeJSON(w, http.StatusConflict, errorBody{Error: "in_flight", Message: err.Error()})
					return
				}
				log.WithError(err).Error("idempotency claim")
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "idempotency store unavailable"})
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			ctx := context.WithoutCancel(r.Context())
			if ww.Status() >= http.StatusInternalServerError {
				if err := idemp.Abort(ctx, key); err != nil {
					log.WithError(err).Warn("idempotency release")
				}
				return
			}
			if err := idemp.Set(ctx, key, idempotency.Response{Status: ww.Status(), Result: buf.Bytes()}); err != nil {
				log.WithError(err).Warn("idempotency store")
			}
		})
	}
}
