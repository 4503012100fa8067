//go:build windows

package artifact

import (
	"os"

	"github.com/hpungsan/xstats/internal/errors"
)

// openFileNoFollow opens path for writing. Windows has no O_NOFOLLOW;
// WriteFileAtomic still refuses a symlinked destination before renaming.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
