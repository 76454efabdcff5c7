package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
	"github.com/roman-rudenko/MultiCurrencyTester/internal/connect"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	InstanceID int32
	Count      int32
	Start      int32
	Ticks      int32
	Variable   string
	Operation  string
	Value      float64
	Balance    float64
	Interval   time.Duration
}

// RunResult summarises a simulated instance.
type RunResult struct {
	InstanceID int32   `json:"instance_id"`
	Session    string  `json:"session"`
	Ticks      int32   `json:"ticks"`
	LastTick   int32   `json:"last_tick"`
	Variable   string  `json:"variable"`
	LastValue  float64 `json:"last_value"`
	Stopped    bool    `json:"stopped"`
}

func (r RunResult) String() string {
	s := fmt.Sprintf("instance %d ran %d ticks (last %d), %s = %g", r.InstanceID, r.Ticks, r.LastTick, r.Variable, r.LastValue)
	if r.Stopped {
		s += " (interrupted)"
	}
	return s
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulated test instance against an arena",
		Long: `Run a simulated test instance.

The instance registers with --id out of --count instances, waits for the
others, then for each tick publishes its balance, adds --value to the shared
variable and reads the aggregate back. Start one run per instance, in separate
terminals or processes, with the same --name.

Example:
  mctctl run --id 0 --count 2 --ticks 100 &
  mctctl run --id 1 --count 2 --ticks 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstance(opts, cmd)
		},
	}

	cmd.Flags().Int32Var(&opts.InstanceID, "id", 0, "instance id (required)")
	cmd.Flags().Int32Var(&opts.Count, "count", 0, "number of instances in the test (required)")
	cmd.Flags().Int32Var(&opts.Start, "start", 1, "first tick")
	cmd.Flags().Int32Var(&opts.Ticks, "ticks", 10, "number of ticks to run")
	cmd.Flags().StringVar(&opts.Variable, "var", "Shared", "variable to contribute to")
	cmd.Flags().StringVar(&opts.Operation, "op", arena.OperationSum.String(), "operation of the variable (Nothing|Sum)")
	cmd.Flags().Float64Var(&opts.Value, "value", 1, "value written each tick")
	cmd.Flags().Float64Var(&opts.Balance, "balance", 10000, "starting balance reported to the journal")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "pause between ticks")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("count")

	return cmd
}

func runInstance(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Ticks < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--ticks %d is negative", opts.Ticks))
	}
	op, err := arena.ParseOperation(opts.Operation)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --op", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cfg, cmd.ErrOrStderr())
	connectOpts, err := cfg.ConnectOptions(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	c, err := connect.Open(connectOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open arena", err)
	}
	defer c.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Closing the client ends any wait for peers.
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			c.Close()
		case <-ctx.Done():
			c.Close()
		}
	}()

	result := RunResult{InstanceID: opts.InstanceID, Variable: opts.Variable}
	err = simulate(ctx, c, opts, op, &result)
	result.Session = c.Session().String()
	if ctx.Err() != nil && (err == nil || errors.Is(err, connect.ErrClosed)) {
		result.Stopped = true
		return opts.formatter(cmd).Success(result)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "instance failed", err)
	}
	return opts.formatter(cmd).Success(result)
}

func simulate(ctx context.Context, c *connect.Client, opts *RunOptions, op arena.Operation, result *RunResult) error {
	if err := c.Initialize(opts.InstanceID, opts.Count); err != nil {
		return err
	}
	if err := c.DeclareVariable(opts.Variable, op); err != nil {
		return err
	}

	balance := opts.Balance
	for i := int32(0); i < opts.Ticks; i++ {
		if ctx.Err() != nil {
			return nil
		}
		tick := opts.Start + i
		if err := c.NextTick(tick, balance, balance); err != nil {
			return err
		}
		if err := c.SetVariable(opts.Variable, opts.Value); err != nil {
			return err
		}
		value, err := c.GetVariable(opts.Variable)
		if err != nil {
			return err
		}
		balance += opts.Value
		result.Ticks++
		result.LastTick = tick
		result.LastValue = value

		if opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(opts.Interval):
			}
		}
	}
	return c.Deinitialize()
}
