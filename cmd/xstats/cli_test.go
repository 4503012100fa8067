package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/ops"
	"github.com/hpungsan/xstats/internal/pipeline"
)

const testAccountJS = `window.YTD.account.part0 = [{"account": {"accountId": "123", "username": "alice"}}]`

const testTweetsJS = `window.YTD.tweets.part0 = [
  {"tweet": {"id": "1", "full_text": "first", "created_at": "Wed Oct 10 20:19:24 +0000 2018", "favorite_count": "4", "retweet_count": "1"}},
  {"tweet": {"id": "2", "full_text": "second", "created_at": "Wed Oct 17 09:00:00 +0000 2018", "favorite_count": "0", "retweet_count": "7"}},
  {"tweet": {"id": "3", "full_text": "@bob reply", "created_at": "Thu Oct 11 09:00:00 +0000 2018", "in_reply_to_user_id": "456"}}
]`

// testDirs isolates config lookup and returns an archive dir and a data dir.
func testDirs(t *testing.T) (archiveDir, dataDir string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOG_LEVEL", "off")
	for _, key := range []string{"XSTATS_ARCHIVE_DIR", "XSTATS_DATA_DIR", "XSTATS_ARTIFACT_BACKEND", "XSTATS_LINK_HOST", "XSTATS_TOP_N", "XSTATS_MONTH_LIMIT"} {
		t.Setenv(key, "")
	}

	archiveDir = t.TempDir()
	for name, content := range map[string]string{
		pipeline.AccountFile: testAccountJS,
		pipeline.PostsFile:   testTweetsJS,
	} {
		if err := os.WriteFile(filepath.Join(archiveDir, name), []byte(content), 0600); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
	return archiveDir, t.TempDir()
}

// runCLI runs one command with the archive and data flags prepended.
func runCLI(t *testing.T, archiveDir, dataDir string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newCLIApp(&appEnv{})
	app.Writer = &stdout
	app.ErrWriter = &stderr

	argv := append([]string{"xstats", "--archive-dir=" + archiveDir, "--data-dir=" + dataDir}, args...)
	err := app.Run(argv)
	return stdout.String(), err
}

func TestCLIRun(t *testing.T) {
	archiveDir, dataDir := testDirs(t)

	out, err := runCLI(t, archiveDir, dataDir, "run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Total posts: 2") {
		t.Errorf("output missing total posts:\n%s", out)
	}
	if !strings.Contains(out, "Total replies: 1") {
		t.Errorf("output missing total replies:\n%s", out)
	}

	for _, name := range []string{pipeline.ArtifactRawJSON, pipeline.ArtifactFlattened, pipeline.ArtifactCSV} {
		if _, err := os.Stat(filepath.Join(dataDir, name)); err != nil {
			t.Errorf("artifact %s not written: %v", name, err)
		}
	}
}

func TestCLIRun_MemoryBackend(t *testing.T) {
	archiveDir, dataDir := testDirs(t)

	out, err := runCLI(t, archiveDir, dataDir, "--backend=memory", "run", "--format=json", "--only=total_posts")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var results []map[string]any
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0]["name"] != "total_posts" {
		t.Errorf("results = %v, want only total_posts", results)
	}

	entries, _ := os.ReadDir(dataDir)
	if len(entries) != 0 {
		t.Errorf("memory backend wrote %d files to the data dir", len(entries))
	}
}

func TestCLIPipeline_Idempotent(t *testing.T) {
	archiveDir, dataDir := testDirs(t)

	out, err := runCLI(t, archiveDir, dataDir, "pipeline")
	if err != nil {
		t.Fatalf("first pipeline failed: %v", err)
	}
	var first pipeline.RunOutput
	if err := json.Unmarshal([]byte(out), &first); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if !first.Complete || first.Produced() != 3 {
		t.Errorf("first run: complete=%v produced=%d", first.Complete, first.Produced())
	}
	before, _ := os.ReadFile(filepath.Join(dataDir, pipeline.ArtifactCSV))

	out, err = runCLI(t, archiveDir, dataDir, "pipeline")
	if err != nil {
		t.Fatalf("second pipeline failed: %v", err)
	}
	var second pipeline.RunOutput
	if err := json.Unmarshal([]byte(out), &second); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	for _, s := range second.Stages {
		if s.Status != pipeline.StatusSkipped {
			t.Errorf("stage %s status = %s, want skipped", s.Stage, s.Status)
		}
	}
	after, _ := os.ReadFile(filepath.Join(dataDir, pipeline.ArtifactCSV))
	if !bytes.Equal(before, after) {
		t.Error("CSV changed on a no-op run")
	}

	out, err = runCLI(t, archiveDir, dataDir, "pipeline", "--force")
	if err != nil {
		t.Fatalf("forced pipeline failed: %v", err)
	}
	var forced pipeline.RunOutput
	if err := json.Unmarshal([]byte(out), &forced); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if forced.Produced() != 3 {
		t.Errorf("forced run produced %d, want 3", forced.Produced())
	}
}

func TestCLIReport(t *testing.T) {
	archiveDir, dataDir := testDirs(t)

	t.Run("before pipeline", func(t *testing.T) {
		_, err := runCLI(t, archiveDir, dataDir, "report")
		if err == nil {
			t.Fatal("expected error when the CSV is missing")
		}
		if exitCode(err) != errors.ExitFailure {
			t.Errorf("exit code = %d, want %d", exitCode(err), errors.ExitFailure)
		}
		if !strings.Contains(err.Error(), string(errors.ErrNotFound)) {
			t.Errorf("error = %q, want NOT_FOUND", err.Error())
		}
	})

	if _, err := runCLI(t, archiveDir, dataDir, "pipeline"); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	t.Run("stdout", func(t *testing.T) {
		out, err := runCLI(t, archiveDir, dataDir, "report", "--only=total_posts,posts_by_day")
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		if !strings.Contains(out, "Total posts: 2") || !strings.Contains(out, "Posts by day of week") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if strings.Contains(out, "Total replies") {
			t.Errorf("--only did not filter:\n%s", out)
		}
	})

	t.Run("to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.md")
		out, err := runCLI(t, archiveDir, dataDir, "report", "--format=markdown", "--out="+path)
		if err != nil {
			t.Fatalf("report failed: %v", err)
		}
		var summary map[string]any
		if err := json.Unmarshal([]byte(out), &summary); err != nil {
			t.Fatalf("failed to parse summary: %v", err)
		}
		if summary["path"] != path {
			t.Errorf("path = %v, want %s", summary["path"], path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.HasPrefix(string(data), "# Archive report") {
			t.Errorf("report file = %q", data)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := runCLI(t, archiveDir, dataDir, "report", "--format=pdf")
		if err == nil || !strings.Contains(err.Error(), string(errors.ErrInvalidRequest)) {
			t.Errorf("error = %v, want INVALID_REQUEST", err)
		}
	})

	t.Run("unknown report", func(t *testing.T) {
		_, err := runCLI(t, archiveDir, dataDir, "report", "--only=nope")
		if err == nil || !strings.Contains(err.Error(), "nope") {
			t.Errorf("error = %v, want unknown report named", err)
		}
	})
}

func TestCLIStatusAndClean(t *testing.T) {
	archiveDir, dataDir := testDirs(t)
	if _, err := runCLI(t, archiveDir, dataDir, "pipeline"); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	out, err := runCLI(t, archiveDir, dataDir, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var status ops.StatusOutput
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to parse status: %v", err)
	}
	if len(status.Artifacts) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(status.Artifacts))
	}
	for _, a := range status.Artifacts {
		if !a.Present {
			t.Errorf("%s not present", a.Artifact)
		}
	}

	out, err = runCLI(t, archiveDir, dataDir, "clean", "--stage=flattened")
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	var cleaned ops.CleanOutput
	if err := json.Unmarshal([]byte(out), &cleaned); err != nil {
		t.Fatalf("failed to parse clean output: %v", err)
	}
	if len(cleaned.Removed) != 2 {
		t.Errorf("removed = %v, want flattened and csv artifacts", cleaned.Removed)
	}
	if _, err := os.Stat(filepath.Join(dataDir, pipeline.ArtifactRawJSON)); err != nil {
		t.Errorf("raw artifact removed: %v", err)
	}
}

func TestCLIErrorHandling(t *testing.T) {
	t.Run("missing archive exits 2", func(t *testing.T) {
		_, dataDir := testDirs(t)
		_, err := runCLI(t, filepath.Join(t.TempDir(), "nowhere"), dataDir, "pipeline")
		if err == nil {
			t.Fatal("expected error")
		}
		if exitCode(err) != errors.ExitMissingData {
			t.Errorf("exit code = %d, want %d", exitCode(err), errors.ExitMissingData)
		}
		if !strings.Contains(err.Error(), pipeline.AccountFile) {
			t.Errorf("error %q does not name the missing file", err.Error())
		}
	})

	t.Run("bad backend", func(t *testing.T) {
		archiveDir, dataDir := testDirs(t)
		_, err := runCLI(t, archiveDir, dataDir, "--backend=s3", "status")
		if err == nil {
			t.Fatal("expected error")
		}
		if exitCode(err) != errors.ExitFailure {
			t.Errorf("exit code = %d, want %d", exitCode(err), errors.ExitFailure)
		}
	})

	t.Run("unknown clean stage", func(t *testing.T) {
		archiveDir, dataDir := testDirs(t)
		_, err := runCLI(t, archiveDir, dataDir, "clean", "--stage=bogus")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cli exit", cli.Exit("boom", 3), 3},
		{"missing data", errors.NewMissingData("a.js", "not found", nil), errors.ExitMissingData},
		{"transform", errors.NewTransform("csv", "tweets.csv", nil), errors.ExitFailure},
		{"output error", outputError(errors.NewMissingData("a.js", "empty", nil)), errors.ExitMissingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"xstats"}, false},
		{[]string{"xstats", "run"}, true},
		{[]string{"xstats", "status"}, true},
		{[]string{"xstats", "--help"}, true},
		{[]string{"xstats", "--data-dir=x", "report"}, true},
		{[]string{"xstats", "serve"}, false},
	}
	for _, tt := range tests {
		if got := isCLIMode(tt.args); got != tt.want {
			t.Errorf("isCLIMode(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}
