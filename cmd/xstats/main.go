package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "pipeline": true, "report": true,
	"status": true, "clean": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	// Global flags come before the subcommand.
	if strings.HasPrefix(args[1], "-") {
		return true
	}
	return cliCommands[args[1]]
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
         _        _
  __  __| |_ __ _| |_ ___
  \ \/ /| __/ _' | __/ __|
   >  < | || (_| | |_\__ \
  /_/\_\ \__\__,_|\__|___/

  X archive to CSV, plus engagement reports

  Usage: xstats <command> [options]
         xstats --help

  MCP server mode requires piped input.`)
}

// exitCode maps an error returned by the CLI to a process status.
func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return errors.ExitCode(err)
}

func main() {
	// .env is optional.
	_ = godotenv.Load()

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if isCLIMode(os.Args) {
		app := newCLIApp(&appEnv{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(exitCode(err))
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'xstats --help' for usage.\n")
		os.Exit(errors.ExitFailure)
	}

	// MCP server mode (default)
	cfg, err := loadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(errors.ExitFailure)
	}
	logOpts := logger.FromEnv()
	logOpts.Level, logOpts.Format = cfg.LogLevel, cfg.LogFormat
	logger.Init(logOpts)
	log := logger.Named("mcp")

	store, err := artifact.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open artifact store: %v\n", err)
		os.Exit(errors.ExitFailure)
	}
	defer store.Close()

	if err := mcp.Run(store, cfg, log, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		store.Close()
		os.Exit(errors.ExitFailure)
	}
}
