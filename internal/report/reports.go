package report

import (
	"fmt"
	"slices"
)

// Report names.
const (
	TopRetweets  = "top_retweets"
	TopFavorites = "top_favorites"
	TotalPosts   = "total_posts"
	TotalReplies = "total_replies"
	PostsByDay   = "posts_by_day"
	PostsByMonth = "posts_by_month"
)

// Kind says how a result is shaped for rendering.
type Kind string

const (
	KindTable  Kind = "table"
	KindScalar Kind = "scalar" // one row, one column
)

// Definition describes one report query.
type Definition struct {
	Name  string
	Title string
	Kind  Kind
	Query string
	Args  []any
}

// Result is the outcome of one Definition.
type Result struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Kind    Kind     `json:"kind"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Error   string   `json:"error,omitempty"`
	Err     error    `json:"-"`
}

// Options parameterize the report battery.
type Options struct {
	TopN       int
	MonthLimit int
	// Disabled drops reports by name.
	Disabled []string
	// Only keeps just these reports when non-empty.
	Only []string
}

const topQuery = `
SELECT full_text,
       created_at_date || ' ' || created_at_time AS created_at,
       %[1]s,
       link
FROM posts
ORDER BY %[1]s DESC, created_at_date, created_at_time
LIMIT ?`

const dayQuery = `
SELECT CASE CAST(strftime('%w', created_at_date) AS INTEGER)
         WHEN 0 THEN 'Sunday'
         WHEN 1 THEN 'Monday'
         WHEN 2 THEN 'Tuesday'
         WHEN 3 THEN 'Wednesday'
         WHEN 4 THEN 'Thursday'
         WHEN 5 THEN 'Friday'
         WHEN 6 THEN 'Saturday'
       END AS day,
       count(*) AS posts
FROM posts
GROUP BY day
ORDER BY posts DESC, min(CAST(strftime('%w', created_at_date) AS INTEGER))`

const monthQuery = `
SELECT CASE CAST(strftime('%m', created_at_date) AS INTEGER)
         WHEN 1 THEN 'January'
         WHEN 2 THEN 'February'
         WHEN 3 THEN 'March'
         WHEN 4 THEN 'April'
         WHEN 5 THEN 'May'
         WHEN 6 THEN 'June'
         WHEN 7 THEN 'July'
         WHEN 8 THEN 'August'
         WHEN 9 THEN 'September'
         WHEN 10 THEN 'October'
         WHEN 11 THEN 'November'
         WHEN 12 THEN 'December'
       END AS month,
       CAST(strftime('%Y', created_at_date) AS INTEGER) AS year,
       count(*) AS posts
FROM posts
GROUP BY month, year
ORDER BY posts DESC, year, min(created_at_date)
LIMIT ?`

// Names lists every report in battery order.
func Names() []string {
	return []string{TopRetweets, TopFavorites, TotalPosts, TotalReplies, PostsByDay, PostsByMonth}
}

// Definitions returns the report battery filtered by opts.
func Definitions(opts Options) []Definition {
	topN := opts.TopN
	if topN <= 0 {
		topN = 3
	}
	monthLimit := opts.MonthLimit
	if monthLimit <= 0 {
		monthLimit = 10
	}

	all := []Definition{
		{
			Name:  TopRetweets,
			Title: fmt.Sprintf("Top %d posts by retweets", topN),
			Kind:  KindTable,
			Query: fmt.Sprintf(topQuery, "retweet_count"),
			Args:  []any{topN},
		},
		{
			Name:  TopFavorites,
			Title: fmt.Sprintf("Top %d posts by favorites", topN),
			Kind:  KindTable,
			Query: fmt.Sprintf(topQuery, "favorite_count"),
			Args:  []any{topN},
		},
		{
			Name:  TotalPosts,
			Title: "Total posts",
			Kind:  KindScalar,
			Query: `SELECT count(*) AS posts FROM posts WHERE is_reply = 0`,
		},
		{
			Name:  TotalReplies,
			Title: "Total replies",
			Kind:  KindScalar,
			Query: `SELECT count(*) AS replies FROM posts WHERE is_reply = 1`,
		},
		{
			Name:  PostsByDay,
			Title: "Posts by day of week",
			Kind:  KindTable,
			Query: dayQuery,
		},
		{
			Name:  PostsByMonth,
			Title: fmt.Sprintf("Top %d months by posts", monthLimit),
			Kind:  KindTable,
			Query: monthQuery,
			Args:  []any{monthLimit},
		},
	}

	defs := make([]Definition, 0, len(all))
	for _, d := range all {
		if slices.Contains(opts.Disabled, d.Name) {
			continue
		}
		if len(opts.Only) > 0 && !slices.Contains(opts.Only, d.Name) {
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

// Unknown returns the names in names that are not reports.
func Unknown(names []string) []string {
	known := Names()
	var out []string
	for _, n := range names {
		if !slices.Contains(known, n) {
			out = append(out, n)
		}
	}
	return out
}
