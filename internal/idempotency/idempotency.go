package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	redisadapter "github.com/robertarktes/movie-ticket-booking/internal/adapters/redis"
)

const MinKeyLength = 16

var ErrInFlight = errors.New("a request with this idempotency key is in flight")

type Backend interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Idempotency stores the first response for a key and replays it for
// retries of the same request.
type Idempotency struct {
	backend Backend
	ttl     time.Duration
	lockTTL time.Duration
}

// NewIdempotency keeps responses for ttl. lockTTL bounds how long a crashed
// request can block retries and must outlive the slowest request.
func NewIdempotency(backend Backend, ttl, lockTTL time.Duration) *Idempotency {
	return &Idempotency{backend: backend, ttl: ttl, lockTTL: lockTTL}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	resp, err := i.backend.Get(ctx, key)
	if err != nil || resp == nil {
		return nil, err
	}
	return &Response{Status: resp.Status, Result: resp.Result}, nil
}

// Begin claims key. ErrInFlight means another request holds it.
func (i *Idempotency) Begin(ctx context.Context, key string) error {
	ok, err := i.backend.Lock(ctx, key, i.lockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	return nil
}

// Set stores the response and releases the claim.
func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	err := i.backend.Set(ctx, key, redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
	return errors.CombineErrors(err, i.backend.Unlock(ctx, key))
}

// Abort releases the claim without storing anything, so the request can be
// retried.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.backend.Unlock(ctx, key)
}
