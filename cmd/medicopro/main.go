// Command medicopro serves and maintains the patient registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitFunc(1)
	}
}

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "medicopro",
		Short:         "Patient registry for small clinics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(
		newServeCmd(opts),
		newExportCmd(opts),
		newStatsCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}
