package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/xstats/internal/errors"
	"github.com/hpungsan/xstats/internal/report"
)

// ValidateOutputPath checks a report destination before anything is written:
//  1. no ".." components
//  2. the extension matches the format
//  3. when allowedDirs is non-empty, the file sits directly in one of them
//  4. neither the parent directory nor the file is a symlink
//
// The parent directory must already exist.
func ValidateOutputPath(path, format string, allowedDirs []string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if want := report.Extension(format); filepath.Ext(cleaned) != want {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension for %s output", want, format))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	parentDir := filepath.Dir(absPath)

	if len(allowedDirs) > 0 {
		dirs, err := resolveDirs(allowedDirs)
		if err != nil {
			return err
		}
		if !isDirectlyInAllowedDir(parentDir, dirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", dirs))
		}
	}

	info, err := os.Lstat(parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(parentDir)
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if !info.IsDir() {
		return errors.NewInvalidRequest("parent path is not a directory")
	}

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// resolveDirs returns dirs as absolute, cleaned paths, resolving any that are symlinks.
func resolveDirs(dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		out = append(out, abs)
	}
	return out, nil
}

// isDirectlyInAllowedDir checks that parentDir is exactly one of allowedDirs.
func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// containsTraversal checks if path contains a ".." component.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
