package upstream

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/lepinkainen/shelfnotes/internal/metrics"
)

// BreakerSettings configures the per-provider circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit once reached. Zero disables the breaker.
	ConsecutiveFailures uint32
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown time.Duration
}

// DefaultBreakerSettings opens after five failures in a row for thirty seconds.
var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 5, Cooldown: 30 * time.Second}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker[[]byte] {
	if s.ConsecutiveFailures == 0 {
		return nil
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		// 4xx answers mean the provider is up; only transport errors and 5xx count.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.Code < http.StatusInternalServerError
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// IsCircuitOpen reports whether err came from a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
