// Package cli implements the operational subcommands of the stockscan binary.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/stockscan/stockscan/internal/app"
)

const usage = `usage:
  stockscan                         run the HTTP server
  stockscan sweep [-aggressive]     sweep staging entries now
  stockscan jobs trigger <name>     enqueue staging:sweep or staging:sweep:aggressive
  stockscan jobs stats              show default queue counters
  stockscan jobs scheduled [-n N]   list scheduled tasks`

// Run executes one subcommand and returns the process exit code.
func Run(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(out, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "sweep":
		err = runSweep(ctx, cfg, logger, args[1:], out)
	case "jobs":
		err = runJobs(ctx, cfg, args[1:], out)
	default:
		fmt.Fprintln(out, usage)
		return 2
	}
	if err != nil {
		logger.Error("command failed", slog.String("command", args[0]), slog.Any("error", err))
		return 1
	}
	return 0
}

func runSweep(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(out)
	aggressive := fs.Bool("aggressive", false, "also remove entries without a timestamp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	components := app.BuildComponents(cfg, logger, storage.Store, nil)
	report, err := components.Janitor.Sweep(ctx, *aggressive)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("jobs: missing subcommand")
	}
	c, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("jobs trigger: missing job name")
		}
		info, err := c.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, stats)
	case "scheduled":
		fs := flag.NewFlagSet("scheduled", flag.ContinueOnError)
		fs.SetOutput(out)
		size := fs.Int("n", 10, "page size")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		tasks, err := c.ListScheduled(ctx, *size)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
