package post

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// Columns is the CSV header, in FlatPost field order.
var Columns = []string{
	"id",
	"favorite_count",
	"retweet_count",
	"created_at_date",
	"created_at_time",
	"is_reply",
	"in_reply_to_user_id",
	"is_self_reply",
	"retweet",
	"has_media",
	"hashtags",
	"user_mentions",
	"urls",
	"source",
	"link",
	"full_text",
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (f FlatPost) record() []string {
	return []string{
		f.ID,
		strconv.FormatInt(f.FavoriteCount, 10),
		strconv.FormatInt(f.RetweetCount, 10),
		f.CreatedAtDate,
		f.CreatedAtTime,
		boolField(f.IsReply),
		f.InReplyToUserID,
		boolField(f.IsSelfReply),
		boolField(f.Retweet),
		boolField(f.HasMedia),
		strconv.Itoa(f.Hashtags),
		strconv.Itoa(f.UserMentions),
		strconv.Itoa(f.URLs),
		f.Source,
		f.Link,
		f.FullText,
	}
}

// EncodeCSV renders rows as a complete CSV document, header first.
// Nothing is returned unless every row encodes.
func EncodeCSV(rows []FlatPost) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return nil, fmt.Errorf("post %s: %w", row.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a document written by EncodeCSV. The header must match Columns.
func DecodeCSV(data []byte) ([]FlatPost, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Columns)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: missing header")
	}
	for i, name := range Columns {
		if records[0][i] != name {
			return nil, fmt.Errorf("csv: column %d is %q, want %q", i, records[0][i], name)
		}
	}

	rows := make([]FlatPost, 0, len(records)-1)
	for n, rec := range records[1:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("csv: row %d: %w", n+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (FlatPost, error) {
	p := fieldParser{rec: rec}
	row := FlatPost{
		ID:              rec[0],
		FavoriteCount:   p.int64(1),
		RetweetCount:    p.int64(2),
		CreatedAtDate:   rec[3],
		CreatedAtTime:   rec[4],
		IsReply:         p.bool(5),
		InReplyToUserID: rec[6],
		IsSelfReply:     p.bool(7),
		Retweet:         p.bool(8),
		HasMedia:        p.bool(9),
		Hashtags:        int(p.int64(10)),
		UserMentions:    int(p.int64(11)),
		URLs:            int(p.int64(12)),
		Source:          rec[13],
		Link:            rec[14],
		FullText:        rec[15],
	}
	return row, p.err
}

// fieldParser keeps the first conversion error.
type fieldParser struct {
	rec []string
	err error
}

func (p *fieldParser) int64(i int) int64 {
	n, err := strconv.ParseInt(p.rec[i], 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", Columns[i], err)
	}
	return n
}

func (p *fieldParser) bool(i int) bool {
	switch p.rec[i] {
	case "1":
		return true
	case "0":
		return false
	}
	if p.err == nil {
		p.err = fmt.Errorf("%s: expected 1 or 0, got %q", Columns[i], p.rec[i])
	}
	return false
}
