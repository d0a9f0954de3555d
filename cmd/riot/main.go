package main

import (
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omibyte.io/riot/builder"
	"omibyte.io/riot/examples/exitcode"
	"omibyte.io/riot/examples/hello"
	"omibyte.io/riot/examples/threads"
)

var (
	verbose bool
	retval  int

	rootCmd = &cobra.Command{
		Use:   "riot",
		Short: "Boot RIOT applications on a simulated core",
		Long: `riot configures an application for a board profile and boots it on a
simulated single-core machine inside this process.`,
		SilenceUsage: true,
	}
)

func logger() golog.Logger {
	if verbose {
		return golog.NewDebugLogger("riot")
	}
	return zap.NewNop().Sugar()
}

func init() {
	if err := builder.Register(hello.App, exitcode.App, threads.App); err != nil {
		panic(err)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log kernel events to stderr")
	rootCmd.AddCommand(bootCmd, boardsCmd, appsCmd, envCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	// The image's return code becomes the process exit code
	os.Exit(retval)
}
