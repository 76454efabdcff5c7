package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roman-rudenko/MultiCurrencyTester/internal/arena"
)

// CapacityOptions holds flags for the capacity command.
type CapacityOptions struct {
	*RootOptions
	Capacity     int
	Instances    int
	NameLen      int
	Contributors int
}

// CapacityCheck is one trial encoding.
type CapacityCheck struct {
	Variables int    `json:"variables"`
	Bytes     int    `json:"bytes"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// CapacityResult is the arena sizing report.
type CapacityResult struct {
	Capacity     int             `json:"capacity"`
	Instances    int             `json:"instances"`
	HeaderBytes  int             `json:"header_bytes"`
	DynamicBytes int             `json:"dynamic_bytes"`
	BytesPerVar  int             `json:"bytes_per_variable"`
	MaxVariables int             `json:"max_variables"`
	Checks       []CapacityCheck `json:"checks"`
}

func (r CapacityResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Arena Capacity Analysis ===\n")
	fmt.Fprintf(&b, "Capacity: %d bytes\n", r.Capacity)
	fmt.Fprintf(&b, "Instances: %d\n", r.Instances)
	fmt.Fprintf(&b, "Header: %d bytes\n", r.HeaderBytes)
	fmt.Fprintf(&b, "Dynamic section: %d bytes\n", r.DynamicBytes)
	fmt.Fprintf(&b, "Bytes per variable: %d\n", r.BytesPerVar)
	fmt.Fprintf(&b, "Max variables: %d\n", r.MaxVariables)

	fmt.Fprintf(&b, "\n=== Encode Tests ===\n")
	for _, c := range r.Checks {
		if c.OK {
			fmt.Fprintf(&b, "%d variables: OK (%d bytes)\n", c.Variables, c.Bytes)
		} else {
			fmt.Fprintf(&b, "%d variables: FAIL (%s)\n", c.Variables, c.Error)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewCapacityCommand creates the capacity command.
func NewCapacityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CapacityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Estimate how many variables fit an arena",
		Long: `Estimate how many variables fit an arena of a given size, then encode
arenas of increasing size to confirm the estimate.

Every variable is assumed to have a name of --name-len bytes and one entry
for each of --contributors instances.

Example:
  mctctl capacity --instances 8 --contributors 8
  mctctl capacity --capacity 65536 --name-len 32 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("capacity") {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				opts.Capacity = cfg.Segment.Capacity
			}
			result, err := analyzeCapacity(opts)
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Success(result)
		},
	}

	cmd.Flags().IntVar(&opts.Capacity, "capacity", arena.DefaultCapacity, "arena size in bytes (defaults to the configured size)")
	cmd.Flags().IntVar(&opts.Instances, "instances", 2, "number of instances")
	cmd.Flags().IntVar(&opts.NameLen, "name-len", 16, "variable name length in bytes")
	cmd.Flags().IntVar(&opts.Contributors, "contributors", 2, "instances contributing to every variable")

	return cmd
}

func analyzeCapacity(opts *CapacityOptions) (CapacityResult, error) {
	if opts.NameLen < 1 || opts.Contributors < 0 {
		return CapacityResult{}, NewExitError(ExitCommandError, "--name-len must be positive and --contributors not negative")
	}
	if opts.Contributors > opts.Instances {
		return CapacityResult{}, NewExitError(ExitCommandError, fmt.Sprintf("--contributors %d exceeds --instances %d", opts.Contributors, opts.Instances))
	}
	layout, err := arena.NewLayout(opts.Instances, opts.Capacity)
	if err != nil {
		return CapacityResult{}, WrapExitError(ExitCommandError, "invalid layout", err)
	}

	// name and entry count, entries, then name and operation.
	perVar := 4 + opts.NameLen + 4 + 16*opts.Contributors + 4 + opts.NameLen + 4
	result := CapacityResult{
		Capacity:     opts.Capacity,
		Instances:    opts.Instances,
		HeaderBytes:  layout.DynamicOffset(),
		DynamicBytes: layout.DynamicCapacity(),
		BytesPerVar:  perVar,
		MaxVariables: (layout.DynamicCapacity() - 8) / perVar,
	}

	for _, n := range trialSizes(result.MaxVariables, distinctNames(opts.NameLen)) {
		st := capacityState(opts, n)
		check := CapacityCheck{Variables: n}
		// The instance count word is encoded too; only the lock counters are not.
		encoded, err := arena.Encode(st, opts.Capacity-8)
		if err != nil {
			check.Error = err.Error()
		} else {
			check.OK = true
			check.Bytes = len(encoded)
		}
		result.Checks = append(result.Checks, check)
		if !check.OK {
			break
		}
	}
	return result, nil
}

// trialSizes returns powers of ten below most, then most and most+1, dropping
// sizes above limit.
func trialSizes(most, limit int) []int {
	var sizes []int
	for n := 1; n < most; n *= 10 {
		sizes = append(sizes, n)
	}
	sizes = append(sizes, most, most+1)

	out := sizes[:0]
	for _, n := range sizes {
		if n <= limit && (len(out) == 0 || out[len(out)-1] != n) {
			out = append(out, n)
		}
	}
	return out
}

// distinctNames returns how many zero-padded decimal names of length n exist.
func distinctNames(n int) int {
	limit := 1
	for i := 0; i < n && limit < 1e9; i++ {
		limit *= 10
	}
	return limit
}

func capacityState(opts *CapacityOptions, vars int) *arena.State {
	st := arena.NewState(int32(opts.Instances))
	for i := 0; i < vars; i++ {
		name := fmt.Sprintf("%0*d", opts.NameLen, i)
		entries := make([]arena.Entry, 0, opts.Contributors)
		for inst := 0; inst < opts.Contributors; inst++ {
			entries = append(entries, arena.Entry{InstanceID: int32(inst), Tick: 1, Value: 1})
		}
		st.Values[name] = entries
		st.Operations[name] = arena.OperationSum
	}
	return st
}
