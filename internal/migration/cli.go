package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// CLI renders migrator operations for `nodeflow migrate`.
type CLI struct {
	migrator Migrator
	output   io.Writer
}

func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// command is one migrate subcommand. Commands with numeric set receive the
// parsed second argument.
type command struct {
	numeric bool
	run     func(c *CLI, ctx context.Context, n int) error
}

var commands = map[string]command{
	"up": {run: func(c *CLI, ctx context.Context, _ int) error {
		return c.apply(ctx, "Running migrations...", "Migrations complete.", c.migrator.Up)
	}},
	"down": {run: func(c *CLI, ctx context.Context, _ int) error {
		return c.apply(ctx, "Rolling back last migration...", "Rollback complete.", c.migrator.Down)
	}},
	"down-all": {run: (*CLI).downAll},
	"steps": {numeric: true, run: func(c *CLI, ctx context.Context, n int) error {
		banner := fmt.Sprintf("Applying %d migration(s)...", n)
		if n < 0 {
			banner = fmt.Sprintf("Rolling back %d migration(s)...", -n)
		}
		return c.apply(ctx, banner, "Complete.", func(ctx context.Context) error {
			return c.migrator.Steps(ctx, n)
		})
	}},
	"goto": {numeric: true, run: func(c *CLI, ctx context.Context, n int) error {
		if n < 0 {
			return fmt.Errorf("goto: version must not be negative")
		}
		return c.apply(ctx, fmt.Sprintf("Migrating to version %d...", n), "Migration complete.",
			func(ctx context.Context) error { return c.migrator.Goto(ctx, uint(n)) })
	}},
	"force":   {numeric: true, run: (*CLI).force},
	"version": {run: (*CLI).version},
	"status":  {run: (*CLI).status},
	"info":    {run: (*CLI).info},
}

// Run dispatches a subcommand: up, down, down-all, steps N, goto V,
// force V, version, status or info. An empty args list means up.
func (c *CLI) Run(ctx context.Context, args []string) error {
	name := "up"
	if len(args) > 0 {
		name = args[0]
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown migrate command %q", name)
	}

	var n int
	if cmd.numeric {
		if len(args) < 2 {
			return fmt.Errorf("%s requires a number", name)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", name, args[1])
		}
		n = v
	}
	return cmd.run(c, ctx, n)
}

// apply prints banner, runs op and reports the resulting version.
func (c *CLI) apply(ctx context.Context, banner, done string, op func(context.Context) error) error {
	fmt.Fprintln(c.output, banner)
	if err := op(ctx); err != nil {
		return err
	}
	v, _, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "%s Current version: %d\n", done, v)
	return nil
}

func (c *CLI) downAll(ctx context.Context, _ int) error {
	fmt.Fprintln(c.output, "Rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.output, "All migrations rolled back.")
	return nil
}

func (c *CLI) force(ctx context.Context, v int) error {
	if err := c.migrator.Force(ctx, v); err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Version forced to %d\n", v)
	return nil
}

func (c *CLI) version(ctx context.Context, _ int) error {
	v, dirty, err := c.migrator.Version(ctx)
	switch {
	case err != nil:
		return err
	case v == 0:
		fmt.Fprintln(c.output, "No migrations applied yet.")
	case dirty:
		fmt.Fprintf(c.output, "Current version: %d (dirty)\n", v)
	default:
		fmt.Fprintf(c.output, "Current version: %d\n", v)
	}
	return nil
}

func (c *CLI) status(ctx context.Context, _ int) error {
	rows, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	var applied int
	for _, r := range rows {
		state := "Pending"
		if r.Applied {
			applied++
			state = "Applied"
		}
		if r.Dirty {
			state = "Dirty"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", r.Version, r.Name, state)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n", len(rows), applied, len(rows)-applied)
	return nil
}

func (c *CLI) info(ctx context.Context, _ int) error {
	in, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.output, 0, 0, 1, ' ', 0)
	fmt.Fprintln(c.output, "Migration Information:")
	fmt.Fprintf(tw, "  Current Version:\t%d\n", in.CurrentVersion)
	fmt.Fprintf(tw, "  Dirty:\t%v\n", in.Dirty)
	fmt.Fprintf(tw, "  Total Migrations:\t%d\n", in.TotalMigrations)
	fmt.Fprintf(tw, "  Applied Migrations:\t%d\n", in.AppliedMigrations)
	fmt.Fprintf(tw, "  Pending Migrations:\t%d\n", in.PendingMigrations)
	return tw.Flush()
}
