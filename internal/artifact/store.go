// Package artifact stores the intermediate documents produced by pipeline stages.
//
// A stage is skipped when its artifact exists, so every backend must make a
// write visible all at once: either the old payload or the new one, never a
// partial file.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hpungsan/xstats/internal/config"
	"github.com/hpungsan/xstats/internal/errors"
)

// Info describes a stored artifact without its payload.
type Info struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store holds named artifacts.
type Store interface {
	// Exists reports whether name has been written.
	Exists(ctx context.Context, name string) (bool, error)
	// Read returns the payload, or NOT_FOUND.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write replaces the payload atomically.
	Write(ctx context.Context, name string, data []byte) error
	// Remove deletes name. Removing an absent artifact is not an error.
	Remove(ctx context.Context, name string) error
	// Stat returns metadata, or nil if name is absent.
	Stat(ctx context.Context, name string) (*Info, error)
	// Location describes where artifacts live, for diagnostics.
	Location() string
	Close() error
}

// Open returns the backend selected by cfg.ArtifactBackend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.ArtifactBackend {
	case "", config.BackendFS:
		return NewFSStore(cfg.DataDir), nil
	case config.BackendSQLite:
		return OpenSQLiteStore(cfg.DataDir)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown artifact backend %q", cfg.ArtifactBackend))
	}
}

// validateName rejects names that could escape the store's namespace.
func validateName(name string) error {
	if name == "" {
		return errors.NewInvalidRequest("artifact name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid artifact name %q", name))
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
