package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/replenishment/internal/app"
	"github.com/odyssey-erp/replenishment/internal/platform/db"
	"github.com/odyssey-erp/replenishment/internal/replenishment"
	"github.com/odyssey-erp/replenishment/jobs"
)

type jobQueue interface {
	Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
	Close() error
}

type planSource interface {
	Scan(ctx context.Context) (replenishment.Plan, error)
}

// deps lets tests swap the redis and postgres backed collaborators.
type deps struct {
	loadConfig  func() (*app.Config, error)
	openQueue   func(cfg *app.Config) jobQueue
	openPlanner func(ctx context.Context, cfg *app.Config) (planSource, func(), error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: app.LoadConfig,
		openQueue: func(cfg *app.Config) jobQueue {
			return NewJobsCLI(cfg.Redis().AsynqOpt())
		},
		openPlanner: func(ctx context.Context, cfg *app.Config) (planSource, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN, "replenishctl")
			if err != nil {
				return nil, nil, err
			}
			svc := replenishment.NewService(replenishment.NewRepository(pool), nil, nil, nil, replenishment.Config{})
			return svc, pool.Close, nil
		},
	}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "replenishctl",
		Short:         "Operate the replenishment engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newJobsCmd(d), newCandidatesCmd(d))
	return root
}

func newJobsCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Trigger and inspect background jobs"}

	var autoOrder, force bool
	trigger := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Enqueue a job now (" + jobs.TaskReplenishmentScan + ", " + jobs.TaskIdempotencyCleanup + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			task, err := buildTask(c, args[0], autoOrder, force)
			if err != nil {
				return err
			}
			return withQueue(d, func(q jobQueue) error {
				info, err := q.Enqueue(c.Context(), task)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	trigger.Flags().BoolVar(&autoOrder, "auto-order", false, "place orders after the scan")
	trigger.Flags().BoolVar(&force, "force", false, "ignore the once-per-day ordering guard")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue depth",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withQueue(d, func(q jobQueue) error {
				s, err := q.InspectQueue(c.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
				return nil
			})
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withQueue(d, func(q jobQueue) error {
				infos, err := q.ListScheduled(c.Context(), size)
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t%s\n", info.ID, info.Type, info.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
				}
				return nil
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}

func buildTask(c *cobra.Command, name string, autoOrder, force bool) (*asynq.Task, error) {
	if name == jobs.TaskReplenishmentScan {
		payload := jobs.ReplenishmentScanPayload{Force: force}
		if c.Flags().Changed("auto-order") {
			payload.AutoOrder = &autoOrder
		}
		return jobs.NewReplenishmentScanTask(payload)
	}
	task, ok := jobs.TaskByName(name)
	if !ok {
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	return task, nil
}

func withQueue(d deps, fn func(jobQueue) error) error {
	cfg, err := d.loadConfig()
	if err != nil {
		return err
	}
	q := d.openQueue(cfg)
	defer func() { _ = q.Close() }()
	return fn(q)
}

func newCandidatesCmd(d deps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Print the current replenishment plan",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			source, closeFn, err := d.openPlanner(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeFn()
			plan, err := source.Scan(c.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			return printPlan(c.OutOrStdout(), plan)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printPlan(w io.Writer, plan replenishment.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUPPLIER\tITEM\tNAME\tON HAND\tTHRESHOLD\tNEEDED")
	for _, group := range plan.Groups {
		for _, line := range group.Lines {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\n", group.SupplierID, line.ItemID, line.ItemName, line.OnHand, line.Threshold, line.NeededQuantity)
		}
	}
	return tw.Flush()
}
