package cli

import (
	"github.com/spf13/cobra"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/shm"
)

// RemoveResult lists the objects a remove deleted.
type RemoveResult struct {
	Removed []string `json:"removed"`
}

func (r RemoveResult) String() string {
	if len(r.Removed) == 0 {
		return "nothing to remove"
	}
	s := "removed:"
	for _, p := range r.Removed {
		s += "\n  " + p
	}
	return s
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete the named objects of an arena",
		Long: `Delete the arena segment, the events segment and the writer mutex file.

Participants that still map the objects keep their view; the next participant
to open the name starts from an empty arena.

Example:
  mctctl remove --name Backtest42`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			opts := connect.Options{Name: cfg.Segment.Name, Dir: cfg.Segment.Dir}

			var result RemoveResult
			for _, name := range []string{opts.ArenaName(), opts.EventsName(), opts.MutexName()} {
				if shm.Exists(opts.Dir, name) {
					result.Removed = append(result.Removed, shm.SegmentPath(opts.Dir, name))
				}
			}
			if err := connect.Remove(opts); err != nil {
				return WrapExitError(ExitFailure, "failed to remove arena", err)
			}
			return rootOpts.formatter(cmd).Success(result)
		},
	}
	return cmd
}
