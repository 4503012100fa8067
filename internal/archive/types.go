package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Account identifies the archive owner.
type Account struct {
	AccountID   string `json:"accountId" validate:"required"`
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"accountDisplayName,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Email       string `json:"email,omitempty"`
}

// RawPost is a post as the archive stores it. Optional fields are pointers so
// absence stays distinguishable from an empty value.
type RawPost struct {
	ID                 FlexString  `json:"id"`
	IDStr              FlexString  `json:"id_str,omitempty"`
	FullText           string      `json:"full_text"`
	CreatedAt          string      `json:"created_at"`
	InReplyToUserID    *FlexString `json:"in_reply_to_user_id,omitempty"`
	InReplyToUserIDStr *FlexString `json:"in_reply_to_user_id_str,omitempty"`
	Entities           *Entities   `json:"entities,omitempty"`
	Source             *string     `json:"source,omitempty"`
	FavoriteCount      Count       `json:"favorite_count"`
	RetweetCount       Count       `json:"retweet_count"`
}

// PostID returns id, falling back to id_str.
func (p RawPost) PostID() string {
	if p.ID != "" {
		return string(p.ID)
	}
	return string(p.IDStr)
}

// ReplyToUserID returns in_reply_to_user_id (or its _str twin) and whether one was present.
func (p RawPost) ReplyToUserID() (string, bool) {
	if p.InReplyToUserID != nil {
		return string(*p.InReplyToUserID), true
	}
	if p.InReplyToUserIDStr != nil {
		return string(*p.InReplyToUserIDStr), true
	}
	return "", false
}

// Entities holds the sub-collections of a post. Only their lengths are used.
type Entities struct {
	Media        []json.RawMessage `json:"media,omitempty"`
	Hashtags     []json.RawMessage `json:"hashtags,omitempty"`
	UserMentions []json.RawMessage `json:"user_mentions,omitempty"`
	URLs         []json.RawMessage `json:"urls,omitempty"`
}

// FlexString decodes from either a JSON string or a JSON number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexString(n.String())
	return nil
}

// Count decodes an engagement counter that the archive may emit as a number
// or as a numeric string. Null and "" decode to zero.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*c = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid count %s", data)
	}
	*c = Count(n)
	return nil
}

// MarshalJSON writes counts as plain numbers.
func (c Count) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(c), 10)), nil
}
