package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CountersResult reports the lock counters before a reset.
type CountersResult struct {
	Readers int32 `json:"readers"`
	Writers int32 `json:"writers"`
}

func (r CountersResult) String() string {
	return fmt.Sprintf("lock counters reset (were readers=%d writers=%d)", r.Readers, r.Writers)
}

// NewResetCountersCommand creates the reset-counters command.
func NewResetCountersCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset-counters",
		Short: "Zero the lock counters of an arena",
		Long: `Zero the reader and writer counters of an arena and reopen the reader
turnstile.

A process that dies while holding the lock leaves its counter raised and every
other participant waiting. Only run this when no participant is inside the
lock. Without --force the counters are left alone when they are already zero.

Example:
  mctctl reset-counters
  mctctl reset-counters --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			c, err := openExisting(cfg, rootOpts.newLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer c.Close()

			out := rootOpts.formatter(cmd)
			readers, writers := c.Counters()
			if readers == 0 && writers == 0 && !force {
				out.VerboseLog("counters already zero")
				return out.Success(CountersResult{})
			}
			if err := c.ResetCounters(); err != nil {
				return WrapExitError(ExitFailure, "failed to reset counters", err)
			}
			return out.Success(CountersResult{Readers: readers, Writers: writers})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reset even when the counters are zero")
	return cmd
}
