package ops

import (
	"context"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/pipeline"
)

// CleanInput contains parameters for the Clean operation.
type CleanInput struct {
	// Stage removes this stage's artifact and every later one. Empty removes all.
	Stage string
}

// CleanOutput contains the result of the Clean operation.
type CleanOutput struct {
	Removed []string `json:"removed"`
}

// Clean removes stage artifacts so the next run re-derives them.
func Clean(ctx context.Context, store artifact.Store, input CleanInput) (*CleanOutput, error) {
	stages := pipeline.Stages
	if input.Stage != "" {
		var err error
		stages, err = pipeline.FromStage(input.Stage)
		if err != nil {
			return nil, err
		}
	}

	out := &CleanOutput{Removed: []string{}}
	for _, st := range stages {
		ok, err := store.Exists(ctx, st.Artifact)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := store.Remove(ctx, st.Artifact); err != nil {
			return nil, err
		}
		out.Removed = append(out.Removed, st.Artifact)
	}
	logger.FromContext(ctx).Info().Strs("removed", out.Removed).Msg("artifacts cleaned")
	return out, nil
}
