package ops

import (
	"context"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/pipeline"
)

// RunInput contains parameters for the Run operation.
type RunInput struct {
	Force  bool
	Report ReportInput
}

// RunOutput contains the result of the Run operation.
type RunOutput struct {
	Pipeline *pipeline.RunOutput `json:"pipeline"`
	Report   *ReportOutput       `json:"report,omitempty"`
}

// Run runs the pipeline, then the reports if the CSV artifact is in place.
// When a stage failed the reports are skipped and Report is nil.
func Run(ctx context.Context, store artifact.Store, cfg *config.Config, input RunInput) (*RunOutput, error) {
	run, err := Pipeline(ctx, store, cfg, PipelineInput{Force: input.Force})
	if err != nil {
		return nil, err
	}
	out := &RunOutput{Pipeline: run}

	if !run.Complete {
		logger.FromContext(ctx).Warn().Str("run_id", run.RunID).Msg("pipeline incomplete, skipping reports")
		return out, nil
	}

	rep, err := Report(ctx, store, cfg, input.Report)
	if err != nil {
		return nil, err
	}
	out.Report = rep
	return out, nil
}
