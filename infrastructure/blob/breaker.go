package blob

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"path-backend/application/ports"
	pkgerrors "path-backend/pkg/errors"
)

// BreakerConfig holds configuration for the blob store circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "blob-store",
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Breaker stops calling a failing blob store until it recovers. A missing
// blob is an answer, not a failure.
type Breaker struct {
	next   ports.BlobStore
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.BlobStore = (*Breaker)(nil)

// NewBreaker wraps next with a circuit breaker
func NewBreaker(next ports.BlobStore, config BreakerConfig, logger *zap.Logger) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsNotFound(err)
		},
	})
	return &Breaker{next: next, cb: cb, logger: logger}
}

func (b *Breaker) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Put(ctx, key, data)
	})
	return b.translate(err)
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key)
	})
	if err != nil {
		return nil, b.translate(err)
	}
	data, _ := result.([]byte)
	return data, nil
}

// State reports the breaker state, for readiness checks
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError("blob store").WithCause(err)
	}
	return err
}
