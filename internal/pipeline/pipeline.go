// Package pipeline runs the three archive stages (raw JSON, flattened JSON,
// CSV), skipping any stage whose artifact is already stored.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/xstats/internal/archive"
	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/post"
)

// Stage names.
const (
	StageRawJSON   = "raw_json"
	StageFlattened = "flattened"
	StageCSV       = "csv"
)

// Artifact names.
const (
	ArtifactRawJSON   = "tweets.json"
	ArtifactFlattened = "flattened_tweets.json"
	ArtifactCSV       = "tweets.csv"
)

// Archive data file names.
const (
	AccountFile = "account.js"
	PostsFile   = "tweets.js"
)

// Status is the outcome of one stage in a run.
type Status string

const (
	StatusProduced Status = "produced"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusBlocked  Status = "blocked" // an earlier stage failed
)

// Stage pairs a stage with the artifact it produces.
type Stage struct {
	Name     string `json:"stage"`
	Artifact string `json:"artifact"`
}

// Stages lists the stages in run order.
var Stages = []Stage{
	{StageRawJSON, ArtifactRawJSON},
	{StageFlattened, ArtifactFlattened},
	{StageCSV, ArtifactCSV},
}

// FromStage returns the named stage and every stage after it.
func FromStage(name string) ([]Stage, error) {
	for i, st := range Stages {
		if st.Name == name {
			return Stages[i:], nil
		}
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown stage %q (want raw_json, flattened or csv)", name))
}

// Source locates the archive data files.
type Source struct {
	AccountPath string
	PostsPath   string
}

// SourceFromDir returns the standard data file paths inside an archive data directory.
func SourceFromDir(dir string) Source {
	return Source{
		AccountPath: filepath.Join(dir, AccountFile),
		PostsPath:   filepath.Join(dir, PostsFile),
	}
}

// Options configure a Runner.
type Options struct {
	Source   Source
	LinkHost string
	// Force removes every stage artifact before running.
	Force  bool
	Logger *logger.Logger
}

// StageResult reports what one stage did.
type StageResult struct {
	Stage    string `json:"stage"`
	Artifact string `json:"artifact"`
	Status   Status `json:"status"`
	Records  int    `json:"records,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunOutput is the result of a pipeline run.
type RunOutput struct {
	RunID    string          `json:"run_id"`
	Account  archive.Account `json:"account"`
	Stages   []StageResult   `json:"stages"`
	Complete bool            `json:"complete"` // the CSV artifact exists after the run
}

// Produced returns how many stages derived a new artifact.
func (o *RunOutput) Produced() int {
	n := 0
	for _, st := range o.Stages {
		if st.Status == StatusProduced {
			n++
		}
	}
	return n
}

// Runner drives the stages against an artifact store.
type Runner struct {
	store artifact.Store
	opts  Options
	log   *logger.Logger
}

// New returns a Runner writing to store.
func New(store artifact.Store, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{store: store, opts: opts, log: log}
}

// derivation produces a stage artifact and the number of records in it.
type derivation func(ctx context.Context, acct archive.Account) ([]byte, int, error)

// Run loads the account, then runs each stage in order.
//
// Account or post extraction failures are MISSING_DATA and returned as-is.
// A TRANSFORM failure marks that stage failed and later stages blocked; Run
// still returns a nil error so the caller can report and exit normally.
func (r *Runner) Run(ctx context.Context) (*RunOutput, error) {
	out := &RunOutput{RunID: newRunID()}
	log := r.log.With().Str("run_id", out.RunID).Logger()

	acct, err := archive.LoadAccount(r.opts.Source.AccountPath)
	if err != nil {
		log.Error().Err(err).Str("path", r.opts.Source.AccountPath).Msg("account data unavailable")
		return nil, err
	}
	out.Account = *acct

	if r.opts.Force {
		for _, st := range Stages {
			if err := r.store.Remove(ctx, st.Artifact); err != nil {
				return nil, err
			}
		}
		log.Info().Msg("removed existing artifacts")
	}

	derive := map[string]derivation{
		StageRawJSON:   r.extract,
		StageFlattened: r.flatten,
		StageCSV:       r.serialize,
	}

	blocked := false
	for _, st := range Stages {
		res := StageResult{Stage: st.Name, Artifact: st.Artifact}
		stageLog := log.With().Str("stage", st.Name).Str("artifact", st.Artifact).Logger()

		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("pipeline")
		}

		if blocked {
			res.Status = StatusBlocked
			out.Stages = append(out.Stages, res)
			stageLog.Warn().Msg("stage blocked by earlier failure")
			continue
		}

		exists, err := r.store.Exists(ctx, st.Artifact)
		if err != nil {
			return nil, err
		}
		if exists {
			res.Status = StatusSkipped
			out.Stages = append(out.Stages, res)
			stageLog.Debug().Msg("artifact present, skipping")
			continue
		}

		data, n, err := derive[st.Name](ctx, *acct)
		if err != nil {
			if errors.Is(err, errors.ErrTransform) {
				stageLog.Error().Err(err).Msg("stage failed")
				res.Status = StatusFailed
				res.Error = err.Error()
				out.Stages = append(out.Stages, res)
				blocked = true
				continue
			}
			stageLog.Error().Err(err).Msg("stage aborted run")
			return nil, err
		}

		if err := r.store.Write(ctx, st.Artifact, data); err != nil {
			return nil, err
		}
		res.Status = StatusProduced
		res.Records = n
		out.Stages = append(out.Stages, res)
		stageLog.Info().Int("records", n).Int("bytes", len(data)).Msg("artifact written")
	}

	out.Complete = !blocked
	return out, nil
}

func (r *Runner) extract(_ context.Context, _ archive.Account) ([]byte, int, error) {
	entries, err := archive.LoadPosts(r.opts.Source.PostsPath)
	if err != nil {
		return nil, 0, err
	}
	data, err := archive.EncodeRawPosts(entries)
	if err != nil {
		return nil, 0, errors.NewTransform(StageRawJSON, ArtifactRawJSON, err)
	}
	return data, len(entries), nil
}

func (r *Runner) flatten(ctx context.Context, acct archive.Account) ([]byte, int, error) {
	raw, err := r.store.Read(ctx, ArtifactRawJSON)
	if err != nil {
		return nil, 0, err
	}
	posts, err := archive.DecodePosts(raw)
	if err != nil {
		return nil, 0, errors.NewTransform(StageFlattened, ArtifactRawJSON, err)
	}
	rows, err := post.NormalizeAll(posts, acct, post.Options{LinkHost: r.opts.LinkHost})
	if err != nil {
		return nil, 0, err
	}
	data, err := post.EncodeJSON(rows)
	if err != nil {
		return nil, 0, errors.NewTransform(StageFlattened, ArtifactFlattened, err)
	}
	return data, len(rows), nil
}

func (r *Runner) serialize(ctx context.Context, _ archive.Account) ([]byte, int, error) {
	flat, err := r.store.Read(ctx, ArtifactFlattened)
	if err != nil {
		return nil, 0, err
	}
	rows, err := post.DecodeJSON(flat)
	if err != nil {
		return nil, 0, errors.NewTransform(StageCSV, ArtifactFlattened, err)
	}
	data, err := post.EncodeCSV(rows)
	if err != nil {
		return nil, 0, errors.NewTransform(StageCSV, ArtifactCSV, err)
	}
	return data, len(rows), nil
}

func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
