package commands

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zpapi-labs/rndc/internal/config"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
)

// resetFlags clears every persistent flag's value and Changed bit so
// tests don't leak state through rootCmd's process-lifetime flag set,
// and resets the package-level session left behind by a prior test.
func resetFlags(t *testing.T) {
	t.Helper()

	for _, name := range []string{"host", "port", "algorithm", "secret", "timeout", "max-retries", "retry-delay", "config", "key-file", "metrics-dump", "dump-config"} {
		f := rootCmd.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}

		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}

	session = nil
	metricsReg = nil

	t.Cleanup(func() {
		session = nil
		metricsReg = nil
	})
}

func setFlag(t *testing.T, name, value string) {
	t.Helper()

	if err := rootCmd.PersistentFlags().Set(name, value); err != nil {
		t.Fatalf("Set(%q, %q) error: %v", name, value, err)
	}
}

// These tests are not run with t.Parallel: they mutate rootCmd's shared
// persistent flag set and the package-level session variable.

func TestPersistentPreRunMissingHost(t *testing.T) {
	resetFlags(t)

	setFlag(t, "port", "953")
	setFlag(t, "algorithm", "hmac-sha256")
	setFlag(t, "secret", "c2VjcmV0")

	err := persistentPreRun(rootCmd, nil)
	if !errors.Is(err, errMissingHost) {
		t.Errorf("persistentPreRun() error = %v, want errMissingHost", err)
	}
}

func TestPersistentPreRunMissingPort(t *testing.T) {
	resetFlags(t)

	setFlag(t, "host", "127.0.0.1")
	setFlag(t, "algorithm", "hmac-sha256")
	setFlag(t, "secret", "c2VjcmV0")

	err := persistentPreRun(rootCmd, nil)
	if !errors.Is(err, errMissingPort) {
		t.Errorf("persistentPreRun() error = %v, want errMissingPort", err)
	}
}

func TestPersistentPreRunMissingAlgorithm(t *testing.T) {
	resetFlags(t)

	setFlag(t, "host", "127.0.0.1")
	setFlag(t, "port", "953")
	setFlag(t, "secret", "c2VjcmV0")

	err := persistentPreRun(rootCmd, nil)
	if !errors.Is(err, errMissingAlgorithm) {
		t.Errorf("persistentPreRun() error = %v, want errMissingAlgorithm", err)
	}
}

func TestPersistentPreRunMissingSecret(t *testing.T) {
	resetFlags(t)

	setFlag(t, "host", "127.0.0.1")
	setFlag(t, "port", "953")
	setFlag(t, "algorithm", "hmac-sha256")

	err := persistentPreRun(rootCmd, nil)
	if !errors.Is(err, errMissingSecret) {
		t.Errorf("persistentPreRun() error = %v, want errMissingSecret", err)
	}
}

func TestPersistentPreRunFlagOverridesEnv(t *testing.T) {
	resetFlags(t)

	t.Setenv("ZPAPI_RNDC_HOST", "env-host")
	t.Setenv("ZPAPI_RNDC_PORT", "111")
	t.Setenv("ZPAPI_RNDC_ALGORITHM", "hmac-sha1")
	t.Setenv("ZPAPI_RNDC_SECRET", "ZW52LXNlY3JldA==")

	setFlag(t, "host", "flag-host")

	if err := persistentPreRun(rootCmd, nil); err != nil {
		t.Fatalf("persistentPreRun() error: %v", err)
	}

	if session == nil {
		t.Fatal("persistentPreRun() left session nil on success")
	}

	cfg, err := config.LoadUnvalidated("")
	if err != nil {
		t.Fatalf("LoadUnvalidated() error: %v", err)
	}

	applyFlagOverrides(rootCmd, cfg)

	if cfg.Server.Host != "flag-host" {
		t.Errorf("Server.Host = %q, want %q (flag over env)", cfg.Server.Host, "flag-host")
	}
}

func TestPersistentPreRunBuildsSessionFromEnv(t *testing.T) {
	resetFlags(t)

	t.Setenv("ZPAPI_RNDC_HOST", "127.0.0.1")
	t.Setenv("ZPAPI_RNDC_PORT", "953")
	t.Setenv("ZPAPI_RNDC_ALGORITHM", "hmac-sha256")
	t.Setenv("ZPAPI_RNDC_SECRET", "c2hhcmVkLXNlY3JldC1rZXk=")

	if err := persistentPreRun(rootCmd, nil); err != nil {
		t.Fatalf("persistentPreRun() error: %v", err)
	}

	if session == nil {
		t.Fatal("persistentPreRun() left session nil on success")
	}
}

func TestFormatErrorPrefixes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		kind rndcerr.Kind
		want string
	}{
		{"connection", rndcerr.Connection, "Connection error: boom"},
		{"configuration", rndcerr.Configuration, "Configuration error: bad port"},
		{"protocol", rndcerr.Protocol, "Protocol error: bad frame"},
		{"authentication", rndcerr.Authentication, "Authentication error: bad signature"},
	}

	causes := map[rndcerr.Kind]string{
		rndcerr.Connection:     "boom",
		rndcerr.Configuration:  "bad port",
		rndcerr.Protocol:       "bad frame",
		rndcerr.Authentication: "bad signature",
	}

	ops := map[rndcerr.Kind]string{
		rndcerr.Connection: "dial tcp",
	}
	_ = ops

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err error
			switch tt.kind {
			case rndcerr.Connection:
				err = rndcerr.Connectionf("dial tcp", errors.New(causes[tt.kind]))
			case rndcerr.Configuration:
				err = rndcerr.Configurationf("new session", errors.New(causes[tt.kind]))
			case rndcerr.Protocol:
				err = rndcerr.Protocolf("parse", errors.New(causes[tt.kind]))
			case rndcerr.Authentication:
				err = rndcerr.Authenticationf("verify", errors.New(causes[tt.kind]))
			}

			if got := formatError(err); got != tt.want {
				t.Errorf("formatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatErrorServerKindHasNoPrefix(t *testing.T) {
	t.Parallel()

	err := rndcerr.Serverf("call", errors.New("zone not found"))

	if got, want := formatError(err), "zone not found"; got != want {
		t.Errorf("formatError() = %q, want %q", got, want)
	}
}

func TestPersistentPreRunKeyFileFillsAlgorithmAndSecret(t *testing.T) {
	resetFlags(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "rndc.key")

	stanza := "key \"rndc-key\" {\n\talgorithm hmac-sha256;\n\tsecret \"c2hhcmVkLXNlY3JldC1rZXk=\";\n};\n"
	if err := os.WriteFile(path, []byte(stanza), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	setFlag(t, "host", "127.0.0.1")
	setFlag(t, "port", "953")
	setFlag(t, "key-file", path)

	if err := persistentPreRun(rootCmd, nil); err != nil {
		t.Fatalf("persistentPreRun() error: %v", err)
	}

	if session == nil {
		t.Fatal("persistentPreRun() left session nil on success")
	}
}

func TestPersistentPreRunKeyFileMissingErrors(t *testing.T) {
	resetFlags(t)

	setFlag(t, "host", "127.0.0.1")
	setFlag(t, "port", "953")
	setFlag(t, "key-file", filepath.Join(t.TempDir(), "does-not-exist"))

	err := persistentPreRun(rootCmd, nil)
	if err == nil {
		t.Fatal("persistentPreRun() error = nil, want non-nil for missing key file")
	}
}

func TestFormatErrorUnclassifiedError(t *testing.T) {
	t.Parallel()

	err := errors.New("plain failure")

	if got, want := formatError(err), "plain failure"; got != want {
		t.Errorf("formatError() = %q, want %q", got, want)
	}
}
