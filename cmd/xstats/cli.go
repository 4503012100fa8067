package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/ops"
	"github.com/hpungsan/xstats/internal/report"
)

// appEnv holds what the global flags resolve to. It is filled in by Before.
type appEnv struct {
	cfg   *config.Config
	store artifact.Store
	log   *logger.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "xstats",
		Usage:   "Convert an X archive to CSV and report on it",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Config file (replaces ~/.xstats and .xstats lookup)"},
			&cli.StringFlag{Name: "archive-dir", Aliases: []string{"a"}, Usage: "Directory holding account.js and tweets.js"},
			&cli.StringFlag{Name: "data-dir", Aliases: []string{"d"}, Usage: "Directory for stage artifacts"},
			&cli.StringFlag{Name: "backend", Usage: "Artifact backend: fs|sqlite|memory"},
		},
		Before: env.setup,
		After:  env.close,
		Commands: []*cli.Command{
			runCmd(env),
			pipelineCmd(env),
			reportCmd(env),
			statusCmd(env),
			cleanCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loadConfig resolves file configuration and environment overrides.
// An explicit path replaces the global + repo lookup.
func loadConfig(explicit string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if explicit != "" {
		cfg, err = config.LoadExplicit(explicit)
	} else {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", herr)
		}
		cwd, cerr := os.Getwd()
		if cerr != nil {
			return nil, cerr
		}
		cfg, err = config.LoadWithRepo(filepath.Join(homeDir, ".xstats"), cwd)
	}
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// setup loads config, applies global flags, and opens the artifact store.
func (e *appEnv) setup(c *cli.Context) error {
	// help and version need nothing
	if c.Args().Len() == 0 || c.Args().First() == "help" {
		return nil
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid config: %v", err)))
	}
	if c.IsSet("archive-dir") {
		cfg.ArchiveDir = c.String("archive-dir")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("backend") {
		cfg.ArtifactBackend = c.String("backend")
	}
	if err := cfg.Validate(); err != nil {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid config: %v", err)))
	}

	logOpts := logger.FromEnv()
	logOpts.Level, logOpts.Format = cfg.LogLevel, cfg.LogFormat
	logOpts.Component = "cli"
	logOpts.Writer = c.App.ErrWriter
	l := logger.New(logOpts)

	store, err := artifact.Open(cfg)
	if err != nil {
		return outputError(err)
	}

	e.cfg = cfg
	e.store = store
	e.log = &l
	return nil
}

func (e *appEnv) close(_ *cli.Context) error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func (e *appEnv) context(c *cli.Context) context.Context {
	return logger.WithContext(c.Context, e.log)
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: report.FormatText, Usage: "Output format: text|json|markdown|html"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the report to this file instead of stdout"},
		&cli.StringFlag{Name: "only", Usage: "Comma-separated report names"},
	}
}

func reportInput(c *cli.Context) ops.ReportInput {
	return ops.ReportInput{
		Format: c.String("format"),
		Out:    c.String("out"),
		Only:   ops.ParseList(c.String("only")),
	}
}

// runCmd creates the run command.
func runCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the pipeline, then the reports",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Rebuild every stage artifact"},
		}, reportFlags()...),
		Action: func(c *cli.Context) error {
			output, err := ops.Run(env.context(c), env.store, env.cfg, ops.RunInput{
				Force:  c.Bool("force"),
				Report: reportInput(c),
			})
			if err != nil {
				return outputError(err)
			}
			if output.Report == nil {
				return outputJSON(c, output.Pipeline)
			}
			return writeReport(c, output.Report)
		},
	}
}

// pipelineCmd creates the pipeline command.
func pipelineCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "pipeline",
		Usage: "Build the raw JSON, flattened JSON and CSV artifacts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Rebuild every stage artifact"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Pipeline(env.context(c), env.store, env.cfg, ops.PipelineInput{
				Force: c.Bool("force"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// reportCmd creates the report command.
func reportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Run the reports over the CSV artifact",
		Flags: reportFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Report(env.context(c), env.store, env.cfg, reportInput(c))
			if err != nil {
				return outputError(err)
			}
			return writeReport(c, output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show which stage artifacts exist",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(env.context(c), env.store)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// cleanCmd creates the clean command.
func cleanCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Remove stage artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stage", Usage: "Remove from this stage on: raw_json|flattened|csv (default: all)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clean(env.context(c), env.store, ops.CleanInput{Stage: c.String("stage")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// Helper functions

// writeReport prints the rendered report, or a JSON summary when it went to a file.
func writeReport(c *cli.Context, out *ops.ReportOutput) error {
	if out.Path != "" {
		return outputJSON(c, map[string]any{"path": out.Path, "format": out.Format, "failed": out.Failed})
	}
	_, err := c.App.Writer.Write(out.Rendered)
	return err
}

// outputJSON marshals result to the app writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI. MISSING_DATA exits 2, everything else 1.
func outputError(err error) error {
	if xErr, ok := err.(*errors.XError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", xErr.Code, xErr.Message), errors.ExitCode(err))
	}
	return cli.Exit(err.Error(), errors.ExitCode(err))
}
