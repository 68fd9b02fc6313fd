package admin

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// CommandTimeout bounds one command run.
const CommandTimeout = 30 * time.Minute

// NewCommand builds the recombinant command tree around r.
func NewCommand(r *Runner) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "recombinant",
		Short:         "Manage recombinant datasets and their datastore tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", CommandTimeout, "maximum duration of the command")
	root.PersistentFlags().StringSliceVar(&r.Orgs, "org", nil, "organization names to work on (default: all)")
	root.PersistentFlags().IntVar(&r.Concurrency, "concurrency", DefaultConcurrency, "organizations queried at once")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	typesCommand := func(use, short string, run func(ctx context.Context, types []string, all bool) error) *cobra.Command {
		var all bool
		cmd := &cobra.Command{
			Use:   use + " (-a | DATASET_TYPE...)",
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				return run(ctx, args, all)
			},
		}
		cmd.Flags().BoolVarP(&all, "all-types", "a", false, "use all registered dataset types")
		return cmd
	}

	root.AddCommand(
		typesCommand("create", "Create and update recombinant datasets", r.Create),
		typesCommand("destroy", "Delete datastore tables and purge recombinant datasets", r.Destroy),
		typesCommand("combine", "Write the records of all organizations as CSV", func(ctx context.Context, types []string, all bool) error {
			return r.Combine(ctx, r.out(), types, all)
		}),
		&cobra.Command{
			Use:   "load-xls XLS_FILE...",
			Short: "Load filled templates into their datasets",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				return r.LoadXLS(ctx, args...)
			},
		},
		&cobra.Command{
			Use:   "target-datasets",
			Short: "List the target datasets",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				r.TargetDatasets()
			},
		},
		&cobra.Command{
			Use:   "dataset-types [TARGET_DATASET...]",
			Short: "List the dataset types of each target dataset",
			Run: func(cmd *cobra.Command, args []string) {
				r.DatasetTypes(args...)
			},
		},
	)
	return root
}
