package rndc

import (
	"log/slog"
	"time"

	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// withRetry runs op, retrying up to s.maxRetries additional times on a
// Connection-kind error (spec section 4.3 "Retry engine"). Between
// attempts it closes and discards the current connection so the next
// attempt re-dials and re-handshakes from scratch; any other error
// kind is returned immediately without retrying.
func (s *Session) withRetry(op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !rndcerr.Retryable(err) {
			s.mu.Lock()
			s.state = apply(s.state, EventFatalError)
			s.closeLocked() //nolint:errcheck // best-effort cleanup; original err is what matters
			s.mu.Unlock()

			return err
		}

		s.mu.Lock()
		s.closeLocked() //nolint:errcheck // best-effort cleanup before retrying
		s.mu.Unlock()

		if attempt == s.maxRetries {
			break
		}

		if s.recorder != nil {
			s.recorder.ObserveRetry()
		}

		s.logger.Warn("rndc retrying after connection error",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		time.Sleep(s.retryDelay)
	}

	return lastErr
}
