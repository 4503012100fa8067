package ops

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/pipeline"
	"github.com/hpungsan/xstats/internal/report"
)

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Format string   // text (default), json, markdown, html
	Out    string   // optional file; the extension must match Format
	Only   []string // optional subset of report names
	// AllowedDirs restricts Out to files directly inside these directories.
	AllowedDirs []string
}

// ReportOutput contains the result of the Report operation.
type ReportOutput struct {
	Format   string          `json:"format"`
	Path     string          `json:"path,omitempty"`
	Failed   int             `json:"failed"`
	Results  []report.Result `json:"results"`
	Rendered []byte          `json:"-"`
}

// Report runs the report battery over the CSV artifact and renders it.
// Individual report failures are counted in Failed, not returned as an error.
func Report(ctx context.Context, store artifact.Store, cfg *config.Config, input ReportInput) (*ReportOutput, error) {
	log := logger.FromContext(ctx)

	format, err := validateFormat(input.Format)
	if err != nil {
		return nil, err
	}
	if err := validateReportNames(input.Only); err != nil {
		return nil, err
	}
	if unknown := report.Unknown(cfg.DisabledReports); len(unknown) > 0 {
		log.Warn().Strs("reports", unknown).Msg("ignoring unknown disabled_reports entries")
	}

	outPath := ""
	if input.Out != "" {
		if err := ValidateOutputPath(input.Out, format, input.AllowedDirs); err != nil {
			return nil, err
		}
		outPath, err = filepath.Abs(filepath.Clean(input.Out))
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
	}

	csvData, err := store.Read(ctx, pipeline.ArtifactCSV)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(pipeline.ArtifactCSV + " (run the pipeline first)")
		}
		return nil, err
	}

	defs := report.Definitions(report.Options{
		TopN:       cfg.TopN,
		MonthLimit: cfg.MonthLimit,
		Disabled:   cfg.DisabledReports,
		Only:       input.Only,
	})
	results := report.RunCSV(ctx, csvData, defs, log)

	out := &ReportOutput{Format: format, Results: results}
	for _, r := range results {
		if r.Err != nil {
			out.Failed++
		}
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, format, results); err != nil {
		return nil, err
	}
	out.Rendered = buf.Bytes()

	if outPath != "" {
		if err := artifact.WriteFileAtomic(outPath, out.Rendered); err != nil {
			return nil, err
		}
		out.Path = outPath
		log.Info().Str("path", outPath).Str("format", format).Msg("report written")
	}

	if out.Failed > 0 {
		log.Warn().Int("failed", out.Failed).Int("total", len(results)).Msg("some reports failed")
	}
	return out, nil
}
