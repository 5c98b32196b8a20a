// =============================================================================
// NodeFlow command line
// =============================================================================
//
// Usage:
//
//	nodeflow demo [--input 3]             # run the square flow once
//	nodeflow serve --config nodeflow.yaml # inspection API and metrics
//	nodeflow migrate up                   # apply history migrations
//	nodeflow history --limit 20           # list recorded runs
//	nodeflow version
// =============================================================================
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/BaSui01/nodeflow/config"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "nodeflow: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return errors.New("no command given")
	}

	switch args[0] {
	case "demo":
		return runDemo(args[1:], stdout)
	case "serve":
		return runServe(args[1:])
	case "migrate":
		return runMigrate(args[1:], stdout)
	case "history":
		return runHistory(args[1:], stdout)
	case "version":
		printVersion(stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// loadConfig reads defaults, the optional YAML file and NODEFLOW_*
// environment overrides, then validates the result.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "NodeFlow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `NodeFlow - node graph and logic flow engine

Usage:
  nodeflow <command> [options]

Commands:
  demo      Execute the square demo flow once and print the result
  serve     Start the inspection API (/healthz, /runs, /node-types, metrics)
  migrate   Manage the run history schema
  history   List recorded runs, or show one with --id
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Options for 'demo':
  --input <float>   Value squared by the flow (default 3)

Options for 'serve':
  --demo-interval <duration>   Run the demo flow periodically (default off)

Migration subcommands:
  migrate up | down | down-all | steps <n> | goto <v> | force <v>
  migrate version | status | info

Examples:
  nodeflow demo --input 12
  nodeflow serve --config /etc/nodeflow/nodeflow.yaml
  nodeflow migrate status
  nodeflow history --status failed --limit 10`)
}
