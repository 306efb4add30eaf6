package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/crossfire/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	BuildVersion   = "master"
	BuildCommit    = "00000000"
	BuildDate      = time.Now().Format("2006-01-02T15:04:05Z")
	BuildGoVersion = runtime.Version()
)

// errRunFailed is returned when a run streamed an error record. The record
// itself already told the user what went wrong.
var errRunFailed = errors.New("correlation failed")

func main() {
	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "crossfire",
		Short: "Shared match correlator",
		Long: `crossfire finds the matches two players shared and streams every time
they damaged, downed or killed each other, match by match.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if cfgFile != "" {
				return os.Setenv(envConfigPath, cfgFile)
			}
			return nil
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides "+envConfigPath+")")

	root.AddCommand(
		newServeCmd(),
		newCorrelateCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "crossfire\n\n")
			fmt.Fprintf(out, "  Version: %s\n", BuildVersion)
			fmt.Fprintf(out, "  Commit:  %s\n", BuildCommit)
			fmt.Fprintf(out, "  Built:   %s\n", BuildDate)
			fmt.Fprintf(out, "  Runtime: %s\n", BuildGoVersion)
		},
	}
}
