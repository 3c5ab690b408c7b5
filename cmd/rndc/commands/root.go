// Package commands implements the rndc CLI: a direct, single-command
// passthrough to a BIND-compatible control channel, mirroring how the
// real rndc tool is invoked (rndc [options] command [command-args...]).
package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/zpapi-labs/rndc/internal/config"
	"github.com/zpapi-labs/rndc/internal/rndc"
	"github.com/zpapi-labs/rndc/internal/rndcerr"
	"github.com/zpapi-labs/rndc/internal/rndcmetrics"
)

// Flag-backed connection parameters, merged with config.Load() output in
// PersistentPreRunE: an explicitly-set flag always wins over a config
// file or environment value.
var (
	flagHost        string
	flagPort        int
	flagAlgorithm   string
	flagSecret      string
	flagTimeout     int
	flagMaxRetries  int
	flagRetryDelay  int
	flagConfigPath  string
	flagMetricsDump bool
	flagKeyFile     string
	flagDumpConfig  bool
)

// session is built once in PersistentPreRunE and used by RunE.
var session *rndc.Session

// metricsReg backs the Collector wired into session via SetRecorder; it
// is gathered and dumped to stderr when --metrics-dump is set.
var metricsReg *prometheus.Registry

// The errMissing* errors hold the exact "Missing --X" wording a caller with
// no host/port/algorithm/secret anywhere (flag, env, or config file) sees.
var (
	errMissingHost      = errors.New("Missing --host: set via flag, ZPAPI_RNDC_HOST, or a config file")
	errMissingPort      = errors.New("Missing --port: set via flag, ZPAPI_RNDC_PORT, or a config file")
	errMissingAlgorithm = errors.New("Missing --algorithm: set via flag, ZPAPI_RNDC_ALGORITHM, or a config file")
	errMissingSecret    = errors.New("Missing --secret: set via flag, ZPAPI_RNDC_SECRET, or a config file")
)

var rootCmd = &cobra.Command{
	Use:   "rndc [flags] command [command-args...]",
	Short: "CLI client for the BIND remote name daemon control protocol",
	Long: "rndc connects to a BIND-compatible control channel (named's rndc " +
		"interface), authenticates with a shared TSIG algorithm, and runs a " +
		"single COMMAND with its arguments joined and sent verbatim.",
	Args:              cobra.MinimumNArgs(1),
	PersistentPreRunE: persistentPreRun,
	RunE:              runCommand,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagHost, "host", "", "RNDC server hostname or IP address")
	flags.IntVar(&flagPort, "port", 0, "RNDC server TCP port")
	flags.StringVar(&flagAlgorithm, "algorithm", "", "TSIG algorithm (md5, sha1, sha224, sha256, sha384, sha512, with or without an hmac- prefix)")
	flags.StringVar(&flagSecret, "secret", "", "base64-encoded shared HMAC key")
	flags.IntVar(&flagTimeout, "timeout", 0, "socket timeout in seconds (default 10)")
	flags.IntVar(&flagMaxRetries, "max-retries", -1, "additional attempts after a retryable connection failure (default 3)")
	flags.IntVar(&flagRetryDelay, "retry-delay", -1, "milliseconds to wait before a retry (default 500)")
	flags.StringVar(&flagConfigPath, "config", "", "path to a YAML configuration file")
	flags.BoolVar(&flagMetricsDump, "metrics-dump", false, "print Prometheus text-format call metrics to stderr after the command runs")
	flags.StringVar(&flagKeyFile, "key-file", "", "path to a BIND rndc.key/rndc.conf key stanza; fills --algorithm/--secret when unset")
	flags.BoolVar(&flagDumpConfig, "dump-config", false, "print the effective merged configuration (secret redacted) to stderr before running")

	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command. On any error it prints formatError's
// kind-specific message to stderr and exits 1; a nonzero "result" field
// in a successful response is turned into the exit code by runCommand.
func Execute() {
	if session != nil {
		defer func() { _ = session.Close() }()
	}

	err := rootCmd.Execute()

	if flagMetricsDump && metricsReg != nil {
		if dumpErr := dumpMetrics(metricsReg, os.Stderr); dumpErr != nil {
			fmt.Fprintln(os.Stderr, dumpErr)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// persistentPreRun merges config.Load()'s output with any explicitly-set
// flags, validates the four required connection parameters with the
// specific "Missing --X" diagnostics callers depend on, and opens the
// session.
func persistentPreRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadUnvalidated(flagConfigPath)
	if err != nil {
		return fmt.Errorf("Configuration error: %w", err)
	}

	applyFlagOverrides(cmd, cfg)

	if flagKeyFile != "" {
		if err := applyKeyFile(flagKeyFile, cfg); err != nil {
			return fmt.Errorf("Configuration error: %w", err)
		}
	}

	if flagDumpConfig {
		if err := dumpConfig(cfg, os.Stderr); err != nil {
			return fmt.Errorf("Configuration error: %w", err)
		}
	}

	if cfg.Server.Host == "" {
		return errMissingHost
	}

	if cfg.Server.Port == 0 {
		return errMissingPort
	}

	if cfg.Server.Algorithm == "" {
		return errMissingAlgorithm
	}

	if cfg.Server.Secret == "" {
		return errMissingSecret
	}

	opts := rndc.Options{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Algorithm:  cfg.Server.Algorithm,
		Secret:     cfg.Server.Secret,
		Timeout:    cfg.Server.Timeout,
		MaxRetries: cfg.Server.MaxRetries,
		RetryDelay: cfg.Server.RetryDelay,
		Logger:     newLogger(cfg.Log),
	}

	s, err := rndc.New(opts)
	if err != nil {
		return err
	}

	metricsReg = prometheus.NewRegistry()
	s.SetRecorder(rndcmetrics.NewCollector(metricsReg))

	session = s

	return nil
}

// applyFlagOverrides copies every explicitly-set persistent flag onto
// cfg, taking precedence over whatever config.LoadUnvalidated resolved
// from a config file, environment variable, or ambient default.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	// cmd.Flag also searches the persistent flag sets, which cmd.Flags()
	// only contains once cobra has parsed the command line.
	changed := func(name string) bool {
		f := cmd.Flag(name)

		return f != nil && f.Changed
	}

	if changed("host") {
		cfg.Server.Host = flagHost
	}

	if changed("port") {
		cfg.Server.Port = flagPort
	}

	if changed("algorithm") {
		cfg.Server.Algorithm = flagAlgorithm
	}

	if changed("secret") {
		cfg.Server.Secret = flagSecret
	}

	if changed("timeout") {
		cfg.Server.Timeout = time.Duration(flagTimeout) * time.Second
	}

	if changed("max-retries") {
		cfg.Server.MaxRetries = flagMaxRetries
	}

	if changed("retry-delay") {
		cfg.Server.RetryDelay = time.Duration(flagRetryDelay) * time.Millisecond
	}
}

// applyKeyFile reads path as a BIND rndc.key/rndc.conf key stanza and
// fills cfg.Server.Algorithm/Secret from it, without overwriting values
// already set by a flag, config file, or environment variable.
func applyKeyFile(path string, cfg *config.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file %s: %w", path, err)
	}

	algorithm, secret, err := config.ParseKeyStanza(string(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if cfg.Server.Algorithm == "" {
		cfg.Server.Algorithm = algorithm
	}

	if cfg.Server.Secret == "" {
		cfg.Server.Secret = secret
	}

	return nil
}

// runCommand joins the positional arguments into one rndc command line,
// connects, issues it, and renders the result. A nonzero exit code from
// render is applied with os.Exit here rather than returned, since a
// nonzero "result" field is not itself a Go error.
func runCommand(_ *cobra.Command, args []string) error {
	if err := session.Connect(); err != nil {
		return err
	}

	result, err := session.Call(strings.Join(args, " "))
	if err != nil {
		return err
	}

	exitCode := render(os.Stdout, result)
	if exitCode != 0 {
		// os.Exit skips Execute's own --metrics-dump, so dump here first.
		if flagMetricsDump && metricsReg != nil {
			if dumpErr := dumpMetrics(metricsReg, os.Stderr); dumpErr != nil {
				fmt.Fprintln(os.Stderr, dumpErr)
			}
		}

		os.Exit(exitCode)
	}

	return nil
}

// formatError renders err the way a real deployment expects to see it on
// stderr: a kind-specific prefix for classified failures, and the bare
// message otherwise (covers the four "Missing --X" flag errors and any
// unclassified failure).
func formatError(err error) string {
	kind, ok := rndcerr.KindOf(err)
	if !ok {
		return err.Error()
	}

	switch kind {
	case rndcerr.Connection:
		return "Connection error: " + unwrapMessage(err)
	case rndcerr.Configuration:
		return "Configuration error: " + unwrapMessage(err)
	case rndcerr.Protocol:
		return "Protocol error: " + unwrapMessage(err)
	case rndcerr.Authentication:
		return "Authentication error: " + unwrapMessage(err)
	case rndcerr.Server:
		return unwrapMessage(err)
	default:
		return err.Error()
	}
}

// unwrapMessage returns the innermost error's message, stripping the
// rndcerr.Kind/op wrapping that formatError's prefix already conveys.
func unwrapMessage(err error) string {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err.Error()
		}

		err = u
	}
}
