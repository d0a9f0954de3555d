package main

import (
	"fmt"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/riot/builder"
	"omibyte.io/riot/core/caps"
	"omibyte.io/riot/targets"
)

// Version of this tool. Images default to builder.DefaultVersion.
var Version = "0.1.0"

var (
	boardsTag string

	boardsCmd = &cobra.Command{
		Use:   "boards",
		Short: "List board profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			boards := targets.All()
			if boardsTag != "" {
				boards = boards.FindByTag(boardsTag)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BOARD\tCPU\tHOSTED\tSTDIO\tCAPABILITIES")
			for _, b := range boards {
				set, err := b.Caps()
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n", b.Name, b.Cpu, b.Hosted, b.Stdio, set)
			}
			return tw.Flush()
		},
	}

	appsCmd = &cobra.Command{
		Use:   "apps",
		Short: "List the applications that can be booted",
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, app := range builder.Apps() {
				requires := strings.Join(app.Requires, ",")
				if requires == "" {
					requires = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", app.Name, requires, app.Description)
			}
			tw.Flush()
		},
	}

	envCmd = &cobra.Command{
		Use:   "env",
		Short: "Print the build environment",
		Run: func(cmd *cobra.Command, args []string) {
			builder.Environment().Print(cmd.OutOrStdout())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riot %s %s/%s (capabilities: %s)\n",
				Version, runtime.GOOS, runtime.GOARCH, strings.Join(caps.Known(), " "))
		},
	}
)

func init() {
	boardsCmd.Flags().StringVar(&boardsTag, "tag", "", "only list boards with this tag")
}
