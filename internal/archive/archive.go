// Package archive reads the data files of an X account archive.
//
// The archive ships its data as browser scripts of the form
//
//	window.YTD.tweets.part0 = [ ... ]
//
// Each Load call parses those assignments into its own scope and discards the
// scope before returning, so no bindings outlive a single extraction.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hpungsan/xstats/internal/errors"
)

// Archive object names.
const (
	ObjectAccount = "account"
	ObjectTweets  = "tweets"
)

const ytdPrefix = "window.YTD."

// scope receives the assignments of one data file.
type scope struct {
	parts map[string]map[int]json.RawMessage
}

func newScope() *scope {
	return &scope{parts: make(map[string]map[int]json.RawMessage)}
}

func (s *scope) bind(object string, part int, value json.RawMessage) {
	if s.parts[object] == nil {
		s.parts[object] = make(map[int]json.RawMessage)
	}
	s.parts[object][part] = value
}

// lookup returns the parts bound for object in part order.
func (s *scope) lookup(object string) []json.RawMessage {
	bound := s.parts[object]
	if len(bound) == 0 {
		return nil
	}
	idx := make([]int, 0, len(bound))
	for i := range bound {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]json.RawMessage, 0, len(idx))
	for _, i := range idx {
		out = append(out, bound[i])
	}
	return out
}

func (s *scope) release() {
	clear(s.parts)
	s.parts = nil
}

// Load reads path and returns the records exposed under object, concatenating
// every partN assignment in part order.
func Load(path, object string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewMissingData(path, "cannot read archive file", err)
	}

	s := newScope()
	defer s.release()

	if err := parseAssignments(data, s); err != nil {
		return nil, errors.NewMissingData(path, "malformed archive file", err)
	}

	parts := s.lookup(object)
	if parts == nil {
		return nil, errors.NewMissingData(path, fmt.Sprintf("object %q not found", object), nil)
	}

	var records []json.RawMessage
	for i, part := range parts {
		var items []json.RawMessage
		if err := json.Unmarshal(part, &items); err != nil {
			return nil, errors.NewMissingData(path, fmt.Sprintf("object %q part %d is not a list", object, i), err)
		}
		records = append(records, items...)
	}
	if records == nil {
		records = []json.RawMessage{}
	}
	return records, nil
}

// parseAssignments binds every `window.YTD.<object>.part<N> = <json>` in data into s.
func parseAssignments(data []byte, s *scope) error {
	pos := 0
	for {
		i := bytes.Index(data[pos:], []byte(ytdPrefix))
		if i < 0 {
			return nil
		}
		pos += i + len(ytdPrefix)

		dot := bytes.IndexByte(data[pos:], '.')
		if dot <= 0 {
			return fmt.Errorf("offset %d: expected object name", pos)
		}
		object := string(data[pos : pos+dot])
		pos += dot + 1

		if !bytes.HasPrefix(data[pos:], []byte("part")) {
			return fmt.Errorf("offset %d: expected part index for %q", pos, object)
		}
		pos += len("part")
		end := pos
		for end < len(data) && data[end] >= '0' && data[end] <= '9' {
			end++
		}
		part, err := strconv.Atoi(string(data[pos:end]))
		if err != nil {
			return fmt.Errorf("offset %d: bad part index for %q", pos, object)
		}
		pos = end

		for pos < len(data) && isSpace(data[pos]) {
			pos++
		}
		if pos >= len(data) || data[pos] != '=' {
			return fmt.Errorf("offset %d: expected '=' after %s%s.part%d", pos, ytdPrefix, object, part)
		}
		pos++

		dec := json.NewDecoder(bytes.NewReader(data[pos:]))
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%s%s.part%d: %w", ytdPrefix, object, part, err)
		}
		s.bind(object, part, value)
		pos += int(dec.InputOffset())
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// LoadAccount loads the archive owner from the account data file.
// An empty collection or a record without id/username is MISSING_DATA.
func LoadAccount(path string) (*Account, error) {
	records, err := Load(path, ObjectAccount)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewMissingData(path, "account collection is empty", nil)
	}

	var entry struct {
		Account *Account `json:"account"`
	}
	if err := json.Unmarshal(records[0], &entry); err != nil {
		return nil, errors.NewMissingData(path, "account record is malformed", err)
	}
	if entry.Account == nil {
		return nil, errors.NewMissingData(path, "account record has no account object", nil)
	}
	if err := validatorInstance().Struct(entry.Account); err != nil {
		return nil, errors.NewMissingData(path, "account record is incomplete", err)
	}
	return entry.Account, nil
}

// LoadPosts loads the raw post entries from the tweets data file, keeping the
// archive's own bytes for each entry.
func LoadPosts(path string) ([]json.RawMessage, error) {
	return Load(path, ObjectTweets)
}

// EncodeRawPosts renders raw entries as an indented JSON document.
// Output depends only on the entries, so re-encoding the same input is byte-identical.
func EncodeRawPosts(entries []json.RawMessage) ([]byte, error) {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodePosts parses a raw-post JSON document. Entries may be wrapped as
// {"tweet": {...}} (the archive's shape) or be bare post objects.
func DecodePosts(data []byte) ([]RawPost, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("raw post document: %w", err)
	}

	posts := make([]RawPost, 0, len(entries))
	for i, raw := range entries {
		var wrapped struct {
			Tweet *RawPost `json:"tweet"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if wrapped.Tweet != nil {
			posts = append(posts, *wrapped.Tweet)
			continue
		}
		var bare RawPost
		if err := json.Unmarshal(raw, &bare); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		posts = append(posts, bare)
	}
	return posts, nil
}
