package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/pipeline"
)

const accountJS = `window.YTD.account.part0 = [{"account": {"accountId": "123", "username": "alice"}}]`

const tweetsJS = `window.YTD.tweets.part0 = [
  {"tweet": {"id": "1", "full_text": "first", "created_at": "Wed Oct 10 20:19:24 +0000 2018", "favorite_count": "4", "retweet_count": "1"}},
  {"tweet": {"id": "2", "full_text": "reply", "created_at": "Thu Oct 11 09:00:00 +0000 2018", "in_reply_to_user_id": "9", "favorite_count": "1", "retweet_count": "3"}}
]`

// testSetup writes an archive and returns handlers over a memory store.
func testSetup(t *testing.T) (*Handlers, *config.Config) {
	t.Helper()

	archiveDir := t.TempDir()
	for name, content := range map[string]string{pipeline.AccountFile: accountJS, pipeline.PostsFile: tweetsJS} {
		if err := os.WriteFile(filepath.Join(archiveDir, name), []byte(content), 0600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.ArchiveDir = archiveDir
	cfg.DataDir = t.TempDir()
	return NewHandlers(artifact.NewMemoryStore(), cfg, nil), cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("content is not TextContent")
	}
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), v); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestHandlePipelineRun(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()

	result, err := h.HandlePipelineRun(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var out pipeline.RunOutput
	decodeResult(t, result, &out)
	if !out.Complete || out.Produced() != 3 {
		t.Errorf("first run = %+v", out)
	}

	result, _ = h.HandlePipelineRun(ctx, makeRequest(nil))
	decodeResult(t, result, &out)
	if out.Produced() != 0 {
		t.Errorf("second run produced %d artifacts, want 0", out.Produced())
	}

	result, _ = h.HandlePipelineRun(ctx, makeRequest(map[string]any{"force": true}))
	decodeResult(t, result, &out)
	if out.Produced() != 3 {
		t.Errorf("forced run produced %d artifacts, want 3", out.Produced())
	}
}

func TestHandlePipelineRun_MissingArchive(t *testing.T) {
	h, cfg := testSetup(t)
	cfg.ArchiveDir = t.TempDir()

	result, err := h.HandlePipelineRun(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	assertErrorCode(t, result, "MISSING_DATA")
}

func TestHandleReportRun(t *testing.T) {
	h, cfg := testSetup(t)
	ctx := context.Background()

	result, _ := h.HandleReportRun(ctx, makeRequest(nil))
	assertErrorCode(t, result, "NOT_FOUND")

	if result, _ := h.HandlePipelineRun(ctx, makeRequest(nil)); result.IsError {
		t.Fatalf("pipeline failed: %v", extractErrorMessage(result))
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantError string
		check     func(t *testing.T, resp map[string]any)
	}{
		{
			name: "default text",
			args: nil,
			check: func(t *testing.T, resp map[string]any) {
				rendered, _ := resp["rendered"].(string)
				if !strings.Contains(rendered, "Total posts: 1") {
					t.Errorf("rendered = %q", rendered)
				}
			},
		},
		{
			name: "json only",
			args: map[string]any{"format": "json", "only": []any{"total_replies"}},
			check: func(t *testing.T, resp map[string]any) {
				if _, ok := resp["rendered"]; ok {
					t.Error("json format should not carry rendered text")
				}
				results, _ := resp["results"].([]any)
				if len(results) != 1 {
					t.Errorf("results = %v", results)
				}
			},
		},
		{
			name: "markdown to data dir",
			args: map[string]any{"format": "markdown", "out": filepath.Join(cfg.DataDir, "report.md")},
			check: func(t *testing.T, resp map[string]any) {
				data, err := os.ReadFile(filepath.Join(cfg.DataDir, "report.md"))
				if err != nil {
					t.Fatalf("report not written: %v", err)
				}
				if !strings.Contains(string(data), "## Total replies") {
					t.Errorf("markdown = %s", data)
				}
			},
		},
		{name: "out outside data dir", args: map[string]any{"format": "markdown", "out": filepath.Join(t.TempDir(), "r.md")}, wantError: "INVALID_REQUEST"},
		{name: "bad format", args: map[string]any{"format": "pdf"}, wantError: "INVALID_REQUEST"},
		{name: "unknown report", args: map[string]any{"only": []any{"nope"}}, wantError: "INVALID_REQUEST"},
		{name: "wrong arg type", args: map[string]any{"only": "total_posts"}, wantError: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleReportRun(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if tt.wantError != "" {
				if !result.IsError {
					t.Fatalf("expected error %s, got success", tt.wantError)
				}
				assertErrorCode(t, result, tt.wantError)
				return
			}
			var resp map[string]any
			decodeResult(t, result, &resp)
			tt.check(t, resp)
		})
	}
}

func TestHandleArtifactStatusAndClean(t *testing.T) {
	h, _ := testSetup(t)
	ctx := context.Background()
	h.HandlePipelineRun(ctx, makeRequest(nil))

	result, _ := h.HandleArtifactStatus(ctx, makeRequest(nil))
	var status struct {
		Location  string `json:"location"`
		Artifacts []struct {
			Artifact string `json:"artifact"`
			Present  bool   `json:"present"`
			Records  *int   `json:"records"`
		} `json:"artifacts"`
	}
	decodeResult(t, result, &status)
	if status.Location != "memory" || len(status.Artifacts) != 3 {
		t.Fatalf("status = %+v", status)
	}
	for _, a := range status.Artifacts {
		if !a.Present || a.Records == nil || *a.Records != 2 {
			t.Errorf("artifact %s = %+v", a.Artifact, a)
		}
	}

	result, _ = h.HandleArtifactClean(ctx, makeRequest(map[string]any{"stage": "csv"}))
	var cleaned struct {
		Removed []string `json:"removed"`
	}
	decodeResult(t, result, &cleaned)
	if len(cleaned.Removed) != 1 || cleaned.Removed[0] != pipeline.ArtifactCSV {
		t.Errorf("removed = %v", cleaned.Removed)
	}

	result, _ = h.HandleArtifactClean(ctx, makeRequest(map[string]any{"stage": "bogus"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	h, cfg := testSetup(t)

	s := NewServer(h.store, cfg, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{"pipeline_run", "report_run", "artifact_status", "artifact_clean"}
	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledToolsAndTypes(t *testing.T) {
	h, cfg := testSetup(t)
	cfg.DisabledTools = []string{"pipeline_run"}
	cfg.DisabledTypes = []string{"artifact"}

	tools := NewServer(h.store, cfg, nil, "test").ListTools()
	if len(tools) != 1 {
		t.Errorf("registered tool count = %d, want 1", len(tools))
	}
	if _, ok := tools["report_run"]; !ok {
		t.Error("report_run should stay registered")
	}
}

func TestValidateDisabled(t *testing.T) {
	if got := ValidateDisabledTools([]string{"report_run", "legacy_store"}); len(got) != 1 || got[0] != "legacy_store" {
		t.Errorf("ValidateDisabledTools() = %v", got)
	}
	if got := ValidateDisabledTypes([]string{"report", "web"}); len(got) != 1 || got[0] != "web" {
		t.Errorf("ValidateDisabledTypes() = %v", got)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := map[string]string{
		"pipeline_run":    "pipeline",
		"artifact_status": "artifact",
		"nounderscore":    "",
		"_leading":        "",
	}
	for tool, want := range tests {
		if got := GetTypeForTool(tool); got != want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", tool, got, want)
		}
	}
}

func TestExpandTypesToTools(t *testing.T) {
	if got := ExpandTypesToTools(nil); got != nil {
		t.Errorf("ExpandTypesToTools(nil) = %v", got)
	}
	got := ExpandTypesToTools([]string{"artifact"})
	if len(got) != 2 {
		t.Errorf("ExpandTypesToTools(artifact) = %v", got)
	}
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload: %v", payload)
		return
	}
	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
