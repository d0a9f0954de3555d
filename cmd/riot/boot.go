package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"omibyte.io/riot/builder"
)

var (
	bootOpts = struct {
		board     string
		stdio     string
		enable    []string
		disable   []string
		idleStack string
		mainStack string
		version   string
		args      string
		timeout   time.Duration
	}{}

	bootCmd = &cobra.Command{
		Use:   "boot [app]",
		Short: "Boot an application",
		Long: `Boot an application on the board selected with --board or $BOARD. The
process exits with the return code of the application's main on hosted boards.

Boards without exit_with_main keep idling after main returns. Stop them with
--timeout or an interrupt; the process then exits with main's return code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := builder.Options{
				Board:         bootOpts.board,
				Environment:   builder.Environment(),
				Enable:        bootOpts.enable,
				Disable:       bootOpts.disable,
				Stdio:         bootOpts.stdio,
				IdleStackSize: bootOpts.idleStack,
				MainStackSize: bootOpts.mainStack,
				Version:       bootOpts.version,
				Args:          bootOpts.args,
			}
			if len(args) > 0 {
				opts.App = args[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if bootOpts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, bootOpts.timeout)
				defer cancel()
			}

			img, err := builder.Build(ctx, opts)
			if err != nil {
				return err
			}
			code, err := img.Boot(ctx, nil, logger())
			if err != nil {
				return err
			}
			retval = code
			return nil
		},
	}
)

func init() {
	bootCmd.Flags().StringVarP(&bootOpts.board, "board", "b", "", "board profile (default $BOARD or native)")
	bootCmd.Flags().StringVar(&bootOpts.stdio, "stdio", "", "stdio backend: null, native, buffer or uart:<port>[@baud]")
	bootCmd.Flags().StringSliceVarP(&bootOpts.enable, "enable", "e", nil, "capabilities to add to the board profile")
	bootCmd.Flags().StringSliceVarP(&bootOpts.disable, "disable", "d", nil, "capabilities to remove from the board profile")
	bootCmd.Flags().StringVar(&bootOpts.idleStack, "idle-stack", "", "idle thread stack size, e.g. 512B")
	bootCmd.Flags().StringVar(&bootOpts.mainStack, "main-stack", "", "main thread stack size, e.g. 2KB")
	bootCmd.Flags().StringVar(&bootOpts.version, "version", "", "version shown in the boot banner (default $RIOT_VERSION)")
	bootCmd.Flags().StringVarP(&bootOpts.args, "args", "a", "", "command line passed to main (default $RIOT_TERMFLAGS)")
	bootCmd.Flags().DurationVarP(&bootOpts.timeout, "timeout", "t", 0, "stop the machine after this long; boards without exit_with_main idle until then")
}
