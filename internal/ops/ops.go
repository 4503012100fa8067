// Package ops holds the operations shared by the CLI and the MCP server.
// Each operation takes an artifact store, the config and an input struct,
// and returns an output struct ready for JSON encoding.
package ops

import (
	"fmt"
	"strings"

	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/pipeline"
	"github.com/hpungsan/xstats/internal/report"
)

// ParseList splits a comma-separated list, trimming blanks.
func ParseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validateReportNames rejects names that are not reports.
func validateReportNames(names []string) error {
	if unknown := report.Unknown(names); len(unknown) > 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("unknown report(s): %s (known: %s)",
			strings.Join(unknown, ", "), strings.Join(report.Names(), ", ")))
	}
	return nil
}

func validateFormat(format string) (string, error) {
	if format == "" {
		return report.FormatText, nil
	}
	for _, f := range report.Formats {
		if f == format {
			return format, nil
		}
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("format must be one of: %s", strings.Join(report.Formats, ", ")))
}

func pipelineOptions(cfg *config.Config, force bool) pipeline.Options {
	return pipeline.Options{
		Source:   pipeline.SourceFromDir(cfg.ArchiveDir),
		LinkHost: cfg.LinkHost,
		Force:    force,
	}
}
