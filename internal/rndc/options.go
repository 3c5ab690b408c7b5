package rndc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zpapi-labs/rndc/internal/rauth"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// Default option values (spec section 6 table).
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

// Sentinel causes for invalid construction parameters.
var (
	ErrEmptyHost       = errors.New("host must not be empty")
	ErrPortRange       = errors.New("port must be in 1..65535")
	ErrTimeoutRange    = errors.New("timeout must be > 0")
	ErrMaxRetriesRange = errors.New("max retries must be >= 0")
	ErrRetryDelayRange = errors.New("retry delay must be >= 0")
	ErrEmptySecret     = errors.New("secret must decode to a non-empty key")
)

// Options configures a new Session (spec section 6).
type Options struct {
	// Host is the RNDC server's hostname or IP address.
	Host string

	// Port is the RNDC server's TCP port, 1..65535. 953 is the
	// conventional BIND rndc port but is not auto-filled here, and
	// config.DefaultConfig leaves it unset too; callers must set it.
	Port int

	// Algorithm is a catalog member name, accepted case-insensitively
	// and with or without the "hmac-" prefix.
	Algorithm string

	// Secret is the shared key, base64-encoded.
	Secret string

	// Timeout bounds each individual socket operation (connect, one
	// send, one receive). Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	// Zero is a valid "no retries" setting and is kept as is (New does
	// not substitute DefaultMaxRetries); negative values are rejected.
	MaxRetries int

	// RetryDelay is the pause between a retryable failure and the next
	// attempt. Defaults to DefaultRetryDelay if zero.
	RetryDelay time.Duration

	// Logger receives structured connect/handshake/retry/close events.
	// A nil Logger falls back to slog.Default().
	Logger *slog.Logger
}

// withDefaults returns a copy of o with zero-valued optional fields
// filled in.
func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}

	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// validate checks Options against spec section 6's constraints,
// returning a Configuration-kind error identifying the first violation.
func (o Options) validate() error {
	if o.Host == "" {
		return rndcerr.Configurationf("new session", ErrEmptyHost)
	}

	if o.Port < 1 || o.Port > 65535 {
		return rndcerr.Configurationf("new session", fmt.Errorf("%w: got %d", ErrPortRange, o.Port))
	}

	if o.Timeout <= 0 {
		return rndcerr.Configurationf("new session", fmt.Errorf("%w: got %s", ErrTimeoutRange, o.Timeout))
	}

	if o.MaxRetries < 0 {
		return rndcerr.Configurationf("new session", fmt.Errorf("%w: got %d", ErrMaxRetriesRange, o.MaxRetries))
	}

	if o.RetryDelay < 0 {
		return rndcerr.Configurationf("new session", fmt.Errorf("%w: got %s", ErrRetryDelayRange, o.RetryDelay))
	}

	return nil
}

// resolveAlgorithm looks up o.Algorithm in the rauth catalog.
func (o Options) resolveAlgorithm() (rauth.Algorithm, error) {
	alg, err := rauth.Lookup(o.Algorithm)
	if err != nil {
		return rauth.Algorithm{}, rndcerr.Configurationf("new session", err)
	}

	return alg, nil
}

// decodeSecret base64-decodes o.Secret into a non-empty key.
func (o Options) decodeSecret() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(o.Secret)
	if err != nil {
		return nil, rndcerr.Configurationf("new session", fmt.Errorf("decode secret: %w", err))
	}

	if len(key) == 0 {
		return nil, rndcerr.Configurationf("new session", ErrEmptySecret)
	}

	return key, nil
}
