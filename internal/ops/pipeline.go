package ops

import (
	"context"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/pipeline"
)

// PipelineInput contains parameters for the Pipeline operation.
type PipelineInput struct {
	Force bool // remove all stage artifacts first
}

// Pipeline runs the three archive stages.
func Pipeline(ctx context.Context, store artifact.Store, cfg *config.Config, input PipelineInput) (*pipeline.RunOutput, error) {
	opts := pipelineOptions(cfg, input.Force)
	opts.Logger = logger.FromContext(ctx)
	return pipeline.New(store, opts).Run(ctx)
}
