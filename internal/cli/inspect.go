package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/config"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/shm"
)

// InspectResult is the printed view of an arena.
type InspectResult struct {
	Path     string       `json:"path"`
	Capacity int          `json:"capacity"`
	Readers  int32        `json:"readers"`
	Writers  int32        `json:"writers"`
	State    *arena.State `json:"state"`
}

func (r InspectResult) String() string {
	var b strings.Builder
	st := r.State
	fmt.Fprintf(&b, "arena     %s\n", r.Path)
	fmt.Fprintf(&b, "capacity  %d\n", r.Capacity)
	fmt.Fprintf(&b, "lock      readers=%d writers=%d\n", r.Readers, r.Writers)
	fmt.Fprintf(&b, "instances %d\n", st.InstancesCount)
	for _, in := range st.Instances {
		fmt.Fprintf(&b, "  #%-3d %-15s tick %d\n", in.ID, in.Status, in.Tick)
	}

	names := variableNames(st)
	fmt.Fprintf(&b, "variables %d\n", len(names))
	for _, name := range names {
		value := "n/a"
		if v, err := st.Value(name); err == nil {
			value = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintf(&b, "  %s %s = %s (%d entries)\n", name, st.Operation(name), value, len(st.Values[name]))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// variableNames lists every written or declared variable in order.
func variableNames(st *arena.State) []string {
	seen := make(map[string]bool)
	var names []string
	for name := range st.Values {
		seen[name] = true
		names = append(names, name)
	}
	for name := range st.Operations {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the lock counters, instances and variables of an arena",
		Long: `Print the lock counters, instance table and variables of an existing arena.

The arena is read under the shared lock, so inspect waits while a writer holds
it. Use reset-counters first if a crashed process left the lock held.

Example:
  mctctl inspect
  mctctl inspect --name Backtest42 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())
	c, err := openExisting(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Snapshot()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read arena", err)
	}
	readers, writers := c.Counters()
	names := connect.Options{Name: cfg.Segment.Name}
	return opts.formatter(cmd).Success(InspectResult{
		Path:     shm.SegmentPath(cfg.Segment.Dir, names.ArenaName()),
		Capacity: cfg.Segment.Capacity,
		Readers:  readers,
		Writers:  writers,
		State:    st,
	})
}

// openExisting opens a Client on an arena that must already exist, without
// registering an instance. Journals are not opened.
func openExisting(cfg config.Config, logger *slog.Logger) (*connect.Client, error) {
	opts := connect.Options{
		Name:     cfg.Segment.Name,
		Dir:      cfg.Segment.Dir,
		Capacity: cfg.Segment.Capacity,
		Logger:   logger,
	}
	if !shm.Exists(opts.Dir, opts.ArenaName()) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("arena %s not found", shm.SegmentPath(opts.Dir, opts.ArenaName())))
	}
	opts.PollInterval = cfg.Sync.PollInterval
	opts.SpinInterval = cfg.Sync.SpinInterval
	c, err := connect.Open(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open arena", err)
	}
	return c, nil
}
