package post

import (
	"bytes"
	"strings"
	"testing"
)

func sampleRow() FlatPost {
	return FlatPost{
		ID:              "999",
		FavoriteCount:   12,
		RetweetCount:    3,
		CreatedAtDate:   "2018-10-10",
		CreatedAtTime:   "20:19:24",
		IsReply:         true,
		InReplyToUserID: "123",
		IsSelfReply:     true,
		HasMedia:        true,
		Hashtags:        2,
		URLs:            1,
		Source:          "Web App",
		Link:            "https://x.com/alice/status/999",
		FullText:        "hello",
	}
}

func TestEncodeCSV_HeaderAndBooleans(t *testing.T) {
	data, err := EncodeCSV([]FlatPost{sampleRow()})
	if err != nil {
		t.Fatalf("EncodeCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0] != strings.Join(Columns, ",") {
		t.Errorf("header = %q", lines[0])
	}
	want := "999,12,3,2018-10-10,20:19:24,1,123,1,0,1,2,0,1,Web App,https://x.com/alice/status/999,hello"
	if lines[1] != want {
		t.Errorf("row = %q\nwant %q", lines[1], want)
	}
	if strings.Contains(string(data), "true") || strings.Contains(string(data), "false") {
		t.Error("booleans rendered as words")
	}
}

func TestEncodeCSV_EmptyHasHeader(t *testing.T) {
	data, err := EncodeCSV(nil)
	if err != nil {
		t.Fatalf("EncodeCSV() error = %v", err)
	}
	if string(data) != strings.Join(Columns, ",")+"\n" {
		t.Errorf("EncodeCSV(nil) = %q", data)
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	texts := []string{
		"plain",
		"a, b, c",
		`she said "hi"`,
		"line one\nline two",
		"\"quoted, with comma\"\nand newline",
		"",
		"RT @bob: ünïcödé 🎉",
	}

	var rows []FlatPost
	for i, text := range texts {
		row := sampleRow()
		row.ID = strings.Repeat("9", i+1)
		row.FullText = text
		row.Source = "App, \"beta\""
		rows = append(rows, row)
	}

	data, err := EncodeCSV(rows)
	if err != nil {
		t.Fatalf("EncodeCSV() error = %v", err)
	}
	got, err := DecodeCSV(data)
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("len = %d, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v\nwant %+v", i, got[i], rows[i])
		}
	}

	again, err := EncodeCSV(got)
	if err != nil {
		t.Fatalf("EncodeCSV() second pass error = %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("re-encoding decoded rows changed the document")
	}
}

func TestDecodeCSV_Errors(t *testing.T) {
	header := strings.Join(Columns, ",")
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"wrong header", strings.Replace(header, "id", "ident", 1) + "\n"},
		{"short row", header + "\n1,2,3\n"},
		{"bad bool", header + "\n1,0,0,2018-10-10,00:00:00,yes,0,0,0,0,0,0,0,,l,t\n"},
		{"bad count", header + "\n1,many,0,2018-10-10,00:00:00,0,0,0,0,0,0,0,0,,l,t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCSV([]byte(tt.doc)); err == nil {
				t.Error("DecodeCSV() expected error")
			}
		})
	}
}
