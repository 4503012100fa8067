package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/xstats/internal/artifact"
	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/ops"
	"github.com/hpungsan/xstats/internal/report"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store artifact.Store
	cfg   *config.Config
	log   *logger.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store artifact.Store, cfg *config.Config, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Nop()
	}
	return &Handlers{store: store, cfg: cfg, log: log}
}

// Request types for each tool

// PipelineRunRequest represents the arguments for pipeline_run.
type PipelineRunRequest struct {
	Force bool `json:"force,omitempty"`
}

// ReportRunRequest represents the arguments for report_run.
type ReportRunRequest struct {
	Format string   `json:"format,omitempty"`
	Only   []string `json:"only,omitempty"`
	Out    string   `json:"out,omitempty"`
}

// ArtifactCleanRequest represents the arguments for artifact_clean.
type ArtifactCleanRequest struct {
	Stage string `json:"stage,omitempty"`
}

// ReportRunResponse adds the rendered document for non-JSON formats.
type ReportRunResponse struct {
	*ops.ReportOutput
	Rendered string `json:"rendered,omitempty"`
}

func (h *Handlers) withLogger(ctx context.Context, tool string) context.Context {
	l := h.log.With().Str("tool", tool).Logger()
	return logger.WithContext(ctx, &l)
}

// Handler implementations

// HandlePipelineRun handles the pipeline_run tool call.
func (h *Handlers) HandlePipelineRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PipelineRunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Pipeline(h.withLogger(ctx, "pipeline_run"), h.store, h.cfg, ops.PipelineInput{Force: input.Force})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleReportRun handles the report_run tool call.
func (h *Handlers) HandleReportRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReportRunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Report(h.withLogger(ctx, "report_run"), h.store, h.cfg, ops.ReportInput{
		Format:      input.Format,
		Only:        input.Only,
		Out:         input.Out,
		AllowedDirs: []string{h.cfg.DataDir},
	})
	if err != nil {
		return errorResult(err), nil
	}

	resp := ReportRunResponse{ReportOutput: result}
	if result.Format != report.FormatJSON {
		resp.Rendered = string(result.Rendered)
	}
	return successResult(resp)
}

// HandleArtifactStatus handles the artifact_status tool call.
func (h *Handlers) HandleArtifactStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(h.withLogger(ctx, "artifact_status"), h.store)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleArtifactClean handles the artifact_clean tool call.
func (h *Handlers) HandleArtifactClean(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ArtifactCleanRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Clean(h.withLogger(ctx, "artifact_clean"), h.store, ops.CleanInput{Stage: input.Stage})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if xErr, ok := err.(*errors.XError); ok {
		errorObj := map[string]any{
			"code":    xErr.Code,
			"message": xErr.Message,
		}
		// Internal details can carry file paths or SQL text.
		if xErr.Code != errors.ErrInternal && xErr.Details != nil {
			errorObj["details"] = xErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
