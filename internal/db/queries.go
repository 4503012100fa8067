package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"time"

	"github.com/hpungsan/xstats/internal/errors"
)

// ArtifactInfo describes a stored artifact without its payload.
type ArtifactInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256"`
	UpdatedAt int64  `json:"updated_at"`
}

// PutArtifact inserts or replaces an artifact in a single statement,
// so readers never observe a partially written payload.
func PutArtifact(ctx context.Context, db *sql.DB, name string, data []byte) error {
	sum := sha256.Sum256(data)
	query := `
		INSERT INTO artifacts (name, data, size, sha256, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			size = excluded.size,
			sha256 = excluded.sha256,
			updated_at = excluded.updated_at
	`
	if data == nil {
		data = []byte{}
	}
	_, err := db.ExecContext(ctx, query, name, data, len(data), hex.EncodeToString(sum[:]), time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetArtifact returns an artifact's payload.
// Returns NOT_FOUND if no artifact has that name.
func GetArtifact(ctx context.Context, db *sql.DB, name string) ([]byte, error) {
	var data []byte
	err := db.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(name)
		}
		return nil, errors.NewInternal(err)
	}
	return data, nil
}

// StatArtifact returns artifact metadata, or nil if it does not exist.
func StatArtifact(ctx context.Context, db *sql.DB, name string) (*ArtifactInfo, error) {
	info := &ArtifactInfo{}
	err := db.QueryRowContext(ctx,
		`SELECT name, size, sha256, updated_at FROM artifacts WHERE name = ?`, name,
	).Scan(&info.Name, &info.Size, &info.SHA256, &info.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}
	return info, nil
}

// DeleteArtifact removes an artifact. Deleting a missing artifact is not an error.
func DeleteArtifact(ctx context.Context, db *sql.DB, name string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM artifacts WHERE name = ?`, name); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
