// Package report runs the fixed battery of aggregate queries over the CSV
// artifact using an in-memory SQLite database.
package report

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpungsan/xstats/internal/db"
	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/logger"
	"github.com/hpungsan/xstats/internal/post"
)

// columnTypes maps each CSV column to its SQL type. Booleans are 0/1 integers.
var columnTypes = map[string]string{
	"id":                  "TEXT",
	"favorite_count":      "INTEGER",
	"retweet_count":       "INTEGER",
	"created_at_date":     "TEXT",
	"created_at_time":     "TEXT",
	"is_reply":            "INTEGER",
	"in_reply_to_user_id": "TEXT",
	"is_self_reply":       "INTEGER",
	"retweet":             "INTEGER",
	"has_media":           "INTEGER",
	"hashtags":            "INTEGER",
	"user_mentions":       "INTEGER",
	"urls":                "INTEGER",
	"source":              "TEXT",
	"link":                "TEXT",
	"full_text":           "TEXT",
}

// Engine holds one in-memory database with a posts table.
type Engine struct {
	db  *sql.DB
	log *logger.Logger
}

// Open creates an empty engine.
func Open(ctx context.Context, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Nop()
	}
	database, err := db.OpenMemory()
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(post.Columns))
	for i, name := range post.Columns {
		cols[i] = name + " " + columnTypes[name] + " NOT NULL"
	}
	ddl := fmt.Sprintf("CREATE TABLE posts (%s)", strings.Join(cols, ", "))
	if _, err := database.ExecContext(ctx, ddl); err != nil {
		database.Close()
		return nil, errors.NewInternal(fmt.Errorf("create posts table: %w", err))
	}
	return &Engine{db: database, log: log}, nil
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// LoadCSV ingests a CSV document written by the serializer and returns the row count.
func (e *Engine) LoadCSV(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	rows, err := post.DecodeCSV(data)
	if err != nil {
		return 0, errors.NewTransform("report", "csv", err)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(post.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO posts (%s) VALUES (%s)",
		strings.Join(post.Columns, ", "), placeholders))
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(row)...); err != nil {
			return 0, errors.NewInternal(fmt.Errorf("insert post %s: %w", row.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}

	e.log.Debug().Int("rows", len(rows)).Msg("csv loaded")
	return len(rows), nil
}

// LoadCSVFile ingests the CSV at path.
func (e *Engine) LoadCSVFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewFileNotFound(path)
		}
		return 0, errors.NewInternal(err)
	}
	return e.LoadCSV(ctx, bytes.NewReader(data))
}

func rowArgs(p post.FlatPost) []any {
	return []any{
		p.ID,
		p.FavoriteCount,
		p.RetweetCount,
		p.CreatedAtDate,
		p.CreatedAtTime,
		boolInt(p.IsReply),
		p.InReplyToUserID,
		boolInt(p.IsSelfReply),
		boolInt(p.Retweet),
		boolInt(p.HasMedia),
		p.Hashtags,
		p.UserMentions,
		p.URLs,
		p.Source,
		p.Link,
		p.FullText,
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Query runs one descriptor and returns its rows.
func (e *Engine) Query(ctx context.Context, def Definition) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, def.Query, def.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Name: def.Name, Title: def.Title, Kind: def.Kind, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Run executes each definition independently. A failing query is logged and
// recorded on its own result; the remaining definitions still run.
func (e *Engine) Run(ctx context.Context, defs []Definition) []Result {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			results = append(results, failed(def, errors.NewCancelled("report "+def.Name)))
			continue
		}
		res, err := e.Query(ctx, def)
		if err != nil {
			qerr := errors.NewReportQuery(def.Name, err)
			e.log.Error().Err(qerr).Str("report", def.Name).Msg("report query failed")
			results = append(results, failed(def, qerr))
			continue
		}
		results = append(results, *res)
	}
	return results
}

// RunCSV opens an engine, loads csvData and runs defs. When the engine
// can't be opened or the CSV can't be loaded, every result carries that error.
func RunCSV(ctx context.Context, csvData []byte, defs []Definition, log *logger.Logger) []Result {
	if log == nil {
		log = logger.Nop()
	}
	engine, err := Open(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("report engine unavailable")
		return failAll(defs, err)
	}
	defer engine.Close()

	if _, err := engine.LoadCSV(ctx, bytes.NewReader(csvData)); err != nil {
		log.Error().Err(err).Msg("csv load failed")
		return failAll(defs, err)
	}
	return engine.Run(ctx, defs)
}

func failed(def Definition, err error) Result {
	return Result{Name: def.Name, Title: def.Title, Kind: def.Kind, Err: err, Error: err.Error()}
}

func failAll(defs []Definition, err error) []Result {
	results := make([]Result, 0, len(defs))
	for _, def := range defs {
		results = append(results, failed(def, err))
	}
	return results
}
