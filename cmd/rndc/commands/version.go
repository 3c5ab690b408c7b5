package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	appversion "github.com/zpapi-labs/rndc/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print rndc client build information",
		Args:  cobra.NoArgs,
		// version bypasses the connection-opening PersistentPreRunE: it
		// never needs a session.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(appversion.Full("rndc"))
		},
	}
}
