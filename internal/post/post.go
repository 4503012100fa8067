// Package post flattens archive posts into fixed-schema rows and serializes
// those rows as JSON and CSV.
package post

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hpungsan/xstats/internal/archive"
	"github.com/hpungsan/xstats/internal/errors"
)

// CreatedAtLayout is the timestamp layout of the archive's created_at field.
const CreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	// DefaultLinkHost is used when Options.LinkHost is empty.
	DefaultLinkHost = "x.com"

	retweetPrefix = "RT "
	noReplyID     = "0"
)

var markupTag = regexp.MustCompile(`<[^>]*>`)

// FlatPost is one normalized row. Field order is the column order.
type FlatPost struct {
	ID              string `json:"id"`
	FavoriteCount   int64  `json:"favorite_count"`
	RetweetCount    int64  `json:"retweet_count"`
	CreatedAtDate   string `json:"created_at_date"`
	CreatedAtTime   string `json:"created_at_time"`
	IsReply         bool   `json:"is_reply"`
	InReplyToUserID string `json:"in_reply_to_user_id"`
	IsSelfReply     bool   `json:"is_self_reply"`
	Retweet         bool   `json:"retweet"`
	HasMedia        bool   `json:"has_media"`
	Hashtags        int    `json:"hashtags"`
	UserMentions    int    `json:"user_mentions"`
	URLs            int    `json:"urls"`
	Source          string `json:"source"`
	Link            string `json:"link"`
	FullText        string `json:"full_text"`
}

// CreatedAt reassembles the UTC timestamp from the date and time columns.
func (f FlatPost) CreatedAt() (time.Time, error) {
	return time.ParseInLocation(dateLayout+" "+timeLayout, f.CreatedAtDate+" "+f.CreatedAtTime, time.UTC)
}

// Options control derived fields.
type Options struct {
	LinkHost string
}

func (o Options) linkHost() string {
	if o.LinkHost == "" {
		return DefaultLinkHost
	}
	return o.LinkHost
}

// Normalize maps one raw post to a FlatPost. Absent optional fields take their
// defaults; only an unparseable created_at is an error.
func Normalize(p archive.RawPost, acct archive.Account, opts Options) (FlatPost, error) {
	id := p.PostID()

	created, err := time.Parse(CreatedAtLayout, p.CreatedAt)
	if err != nil {
		return FlatPost{}, fmt.Errorf("invalid created_at %q: %w", p.CreatedAt, err)
	}
	created = created.UTC()

	flat := FlatPost{
		ID:              id,
		FavoriteCount:   int64(p.FavoriteCount),
		RetweetCount:    int64(p.RetweetCount),
		CreatedAtDate:   created.Format(dateLayout),
		CreatedAtTime:   created.Format(timeLayout),
		InReplyToUserID: noReplyID,
		Retweet:         strings.HasPrefix(p.FullText, retweetPrefix),
		Link:            fmt.Sprintf("https://%s/%s/status/%s", opts.linkHost(), acct.Username, id),
		FullText:        p.FullText,
	}

	if replyTo, ok := p.ReplyToUserID(); ok && replyTo != "" {
		flat.IsReply = true
		flat.InReplyToUserID = replyTo
		flat.IsSelfReply = replyTo == acct.AccountID
	}

	if e := p.Entities; e != nil {
		flat.HasMedia = len(e.Media) > 0
		flat.Hashtags = len(e.Hashtags)
		flat.UserMentions = len(e.UserMentions)
		flat.URLs = len(e.URLs)
	}

	if p.Source != nil {
		flat.Source = markupTag.ReplaceAllString(*p.Source, "")
	}

	return flat, nil
}

// NormalizeAll flattens posts in order. The first bad record aborts the batch
// with a TRANSFORM error naming the post, so no partial batch is returned.
func NormalizeAll(posts []archive.RawPost, acct archive.Account, opts Options) ([]FlatPost, error) {
	out := make([]FlatPost, 0, len(posts))
	for _, p := range posts {
		flat, err := Normalize(p, acct, opts)
		if err != nil {
			return nil, errors.NewTransform("flattened", "post "+p.PostID(), err)
		}
		out = append(out, flat)
	}
	return out, nil
}

// EncodeJSON renders rows as an indented JSON document with a trailing newline.
func EncodeJSON(rows []FlatPost) ([]byte, error) {
	if rows == nil {
		rows = []FlatPost{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeJSON parses a flattened JSON document.
func DecodeJSON(data []byte) ([]FlatPost, error) {
	var rows []FlatPost
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("flattened document: %w", err)
	}
	if rows == nil {
		return nil, fmt.Errorf("flattened document: expected a list")
	}
	return rows, nil
}
