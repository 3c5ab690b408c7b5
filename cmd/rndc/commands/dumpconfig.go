package commands

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zpapi-labs/rndc/internal/config"
)

// redactedSecret replaces a real secret in --dump-config output so a
// pasted diagnostic never leaks the shared HMAC key.
const redactedSecret = "<redacted>"

// dumpConfig writes cfg's effective, merged (file+env+flag) values to w
// as YAML for diagnostics, with the shared secret redacted. It uses
// gopkg.in/yaml.v3 directly rather than relying on it only transitively
// through koanf's yaml parser, since --dump-config's output format is
// this repository's own concern, not koanf's.
func dumpConfig(cfg *config.Config, w io.Writer) error {
	redacted := *cfg
	if redacted.Server.Secret != "" {
		redacted.Server.Secret = redactedSecret
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("marshal effective config: %w", err)
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write effective config: %w", err)
	}

	return nil
}
