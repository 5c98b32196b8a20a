package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/BaSui01/nodeflow/history"
	"github.com/BaSui01/nodeflow/logic"
)

// runHistory prints runs recorded in the database history store.
func runHistory(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	id := fs.String("id", "", "Show the node records of one run")
	graphName := fs.String("graph", "", "Only runs of this graph")
	status := fs.String("status", "", "Only runs with this status: completed, aborted, failed")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.History.Store != "database" {
		return errors.New("history is kept in memory; use `nodeflow serve` and GET /runs, or set history.store: database")
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := openMigratedPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	store := history.NewGormStore(db, logger)

	if *id != "" {
		run, err := store.Get(ctx, *id)
		if err != nil {
			return err
		}
		return printRun(stdout, run)
	}

	runs, err := store.List(ctx, history.Filter{
		Graph:  *graphName,
		Status: logic.Status(*status),
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	return printRuns(stdout, runs, total)
}

func printRuns(w io.Writer, runs []*history.Run, total int64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGRAPH\tSTATUS\tSTARTED\tDURATION\tNODES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.Graph, r.Status, r.StartTime.Format(time.RFC3339), r.Duration(), r.Executed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d runs\n", len(runs), total)
	return err
}

func printRun(w io.Writer, run *history.Run) error {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Graph:    %s\n", run.Graph)
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartTime.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration())
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.Error)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tNODE\tTYPE\tDURATION\tERROR")
	for _, n := range run.Nodes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n.Seq, n.Name, n.Type, n.Duration, n.Error)
	}
	return tw.Flush()
}
