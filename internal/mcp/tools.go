package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/xstats/internal/report"
)

var pipelineRunToolDef = mcp.NewTool("pipeline_run",
	mcp.WithDescription("Run the archive pipeline (raw JSON, flattened JSON, CSV). "+
		"Stages whose artifact already exists are skipped."),
	mcp.WithBoolean("force",
		mcp.Description("Remove every stage artifact first and rebuild from the archive"),
	),
)

var reportRunToolDef = mcp.NewTool("report_run",
	mcp.WithDescription("Run the aggregate reports over the CSV artifact. "+
		"A failing report is returned with an error field; the others still run."),
	mcp.WithString("format",
		mcp.Description("Output format"),
		mcp.Enum(report.Formats...),
	),
	mcp.WithArray("only",
		mcp.Description("Run only these reports"),
		mcp.Items(map[string]any{"type": "string", "enum": report.Names()}),
	),
	mcp.WithString("out",
		mcp.Description("Also write the rendered report to this file. "+
			"Must sit directly in the data directory and carry the format's extension."),
	),
)

var artifactStatusToolDef = mcp.NewTool("artifact_status",
	mcp.WithDescription("Show presence, size, checksum and record count of each stage artifact"),
)

var artifactCleanToolDef = mcp.NewTool("artifact_clean",
	mcp.WithDescription("Remove stage artifacts so the next pipeline run re-derives them"),
	mcp.WithString("stage",
		mcp.Description("Remove this stage's artifact and every later one; omit to remove all"),
		mcp.Enum("raw_json", "flattened", "csv"),
	),
)
