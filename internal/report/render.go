package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hpungsan/xstats/internal/errors"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatMarkdown, FormatHTML}

// Extension returns the file extension expected for format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".txt"
	}
}

const maxTextCell = 80

var printer = message.NewPrinter(language.English)

// Render writes results to w in format.
func Render(w io.Writer, format string, results []Result) error {
	switch format {
	case "", FormatText:
		return renderText(w, results)
	case FormatJSON:
		return renderJSON(w, results)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(results))
		return err
	case FormatHTML:
		return renderHTML(w, results)
	default:
		return errors.NewInvalidRequest(fmt.Sprintf("unknown format %q (want one of: %s)", format, strings.Join(Formats, ", ")))
	}
}

// formatValue renders a cell. Integers get thousands separators; text is
// flattened to one line and truncated.
func formatValue(v any, limit int) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return printer.Sprintf("%d", x)
	case int:
		return printer.Sprintf("%d", x)
	case float64:
		return printer.Sprintf("%.2f", x)
	case string:
		s := strings.Join(strings.Fields(x), " ")
		if limit > 0 {
			if r := []rune(s); len(r) > limit {
				s = string(r[:limit-1]) + "…"
			}
		}
		return s
	default:
		return fmt.Sprint(x)
	}
}

func scalar(r Result) (any, bool) {
	if r.Kind != KindScalar || len(r.Rows) != 1 || len(r.Rows[0]) != 1 {
		return nil, false
	}
	return r.Rows[0][0], true
}

func renderText(w io.Writer, results []Result) error {
	var buf bytes.Buffer
	for i, r := range results {
		if i > 0 {
			buf.WriteString("\n")
		}
		if r.Err != nil || r.Error != "" {
			fmt.Fprintf(&buf, "%s: error: %s\n", r.Title, r.Error)
			continue
		}
		if v, ok := scalar(r); ok {
			fmt.Fprintf(&buf, "%s: %s\n", r.Title, formatValue(v, 0))
			continue
		}

		fmt.Fprintf(&buf, "%s\n", r.Title)
		if len(r.Rows) == 0 {
			buf.WriteString("  (no rows)\n")
			continue
		}
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "  %s\n", strings.Join(r.Columns, "\t"))
		for _, row := range r.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = formatValue(v, maxTextCell)
			}
			fmt.Fprintf(tw, "  %s\n", strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func renderJSON(w io.Writer, results []Result) error {
	if results == nil {
		results = []Result{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func markdownCell(v any) string {
	s := formatValue(v, 0)
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "|", `\|`)
}

// Markdown renders results as a markdown document with GFM tables.
func Markdown(results []Result) string {
	var b strings.Builder
	b.WriteString("# Archive report\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n## %s\n\n", r.Title)
		if r.Err != nil || r.Error != "" {
			fmt.Fprintf(&b, "> error: %s\n", r.Error)
			continue
		}
		if v, ok := scalar(r); ok {
			fmt.Fprintf(&b, "**%s**\n", markdownCell(v))
			continue
		}
		if len(r.Rows) == 0 {
			b.WriteString("_no rows_\n")
			continue
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(r.Columns, " | "))
		fmt.Fprintf(&b, "|%s\n", strings.Repeat(" --- |", len(r.Columns)))
		for _, row := range r.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = markdownCell(v)
			}
			fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
		}
	}
	return b.String()
}

var markdownHTML = goldmark.New(goldmark.WithExtensions(extension.Table))

func renderHTML(w io.Writer, results []Result) error {
	var body bytes.Buffer
	if err := markdownHTML.Convert([]byte(Markdown(results)), &body); err != nil {
		return errors.NewInternal(fmt.Errorf("render html: %w", err))
	}
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Archive report</title>\n</head>\n<body>\n")
	buf.Write(body.Bytes())
	buf.WriteString("</body>\n</html>\n")
	_, err := w.Write(buf.Bytes())
	return err
}
