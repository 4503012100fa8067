package ops

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/xstats/internal/errors"
)

func TestValidateOutputPath_TraversalRejected(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../report.md"},
		{"deep traversal", "../../etc/report.md"},
		{"mid-path traversal", "/tmp/../etc/report.md"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOutputPath(tc.path, "markdown", nil)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got: %v", err)
			}
		})
	}
}

func TestValidateOutputPath_ExtensionMatchesFormat(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format string
		file   string
		ok     bool
	}{
		{"markdown", "r.md", true},
		{"html", "r.html", true},
		{"json", "r.json", true},
		{"text", "r.txt", true},
		{"markdown", "r.html", false},
		{"json", "r", false},
	}
	for _, tc := range tests {
		err := ValidateOutputPath(filepath.Join(dir, tc.file), tc.format, nil)
		if tc.ok && err != nil {
			t.Errorf("%s %s: unexpected error %v", tc.format, tc.file, err)
		}
		if !tc.ok && !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("%s %s: expected INVALID_REQUEST, got %v", tc.format, tc.file, err)
		}
	}
}

func TestValidateOutputPath_ParentMustExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "r.md")
	if err := ValidateOutputPath(path, "markdown", nil); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestValidateOutputPath_AllowedDirs(t *testing.T) {
	allowed := t.TempDir()
	sub := filepath.Join(allowed, "sub")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputPath(filepath.Join(allowed, "r.md"), "markdown", []string{allowed}); err != nil {
		t.Errorf("direct child rejected: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(sub, "r.md"), "markdown", []string{allowed}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("subdirectory accepted: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(t.TempDir(), "r.md"), "markdown", []string{allowed}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("outside dir accepted: %v", err)
	}
}

func TestValidateOutputPath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.md")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.md")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	if err := ValidateOutputPath(link, "markdown", nil); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST for symlink, got %v", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"report.md", false},
		{"/tmp/report.md", false},
		{"../report.md", true},
		{"a/../b.md", true},
		{"a..b.md", false},
	}
	for _, tc := range tests {
		if got := containsTraversal(tc.path); got != tc.want {
			t.Errorf("containsTraversal(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
