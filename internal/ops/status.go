package ops

import (
	"context"
	"encoding/json"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/pipeline"
	"github.com/hpungsan/xstats/internal/post"
)

// ArtifactStatus describes one stage artifact.
type ArtifactStatus struct {
	Stage     string `json:"stage"`
	Artifact  string `json:"artifact"`
	Present   bool   `json:"present"`
	Size      int64  `json:"size,omitempty"`
	SHA256    string `json:"sha256,omitempty"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
	Records   *int   `json:"records,omitempty"` // nil when the payload can't be decoded
}

// StatusOutput contains the result of the Status operation.
type StatusOutput struct {
	Location  string           `json:"location"`
	Artifacts []ArtifactStatus `json:"artifacts"`
}

// Status reports presence, size and record count of each stage artifact.
func Status(ctx context.Context, store artifact.Store) (*StatusOutput, error) {
	out := &StatusOutput{Location: store.Location(), Artifacts: []ArtifactStatus{}}
	for _, st := range pipeline.Stages {
		as := ArtifactStatus{Stage: st.Name, Artifact: st.Artifact}
		info, err := store.Stat(ctx, st.Artifact)
		if err != nil {
			return nil, err
		}
		if info != nil {
			as.Present = true
			as.Size = info.Size
			as.SHA256 = info.SHA256
			as.UpdatedAt = info.UpdatedAt
			as.Records = countRecords(ctx, store, st.Artifact)
		}
		out.Artifacts = append(out.Artifacts, as)
	}
	return out, nil
}

func countRecords(ctx context.Context, store artifact.Store, name string) *int {
	data, err := store.Read(ctx, name)
	if err != nil {
		return nil
	}

	var n int
	if name == pipeline.ArtifactCSV {
		rows, err := post.DecodeCSV(data)
		if err != nil {
			logger.FromContext(ctx).Debug().Err(err).Str("artifact", name).Msg("cannot count records")
			return nil
		}
		n = len(rows)
	} else {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			logger.FromContext(ctx).Debug().Err(err).Str("artifact", name).Msg("cannot count records")
			return nil
		}
		n = len(items)
	}
	return &n
}
