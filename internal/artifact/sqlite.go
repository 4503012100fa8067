package artifact

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/hpungsan/xstats/internal/db"
)

// SQLiteStore keeps artifacts as rows of one SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	dir string
}

// OpenSQLiteStore opens (creating if needed) the artifact database in dir.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	database, err := db.Init(dir)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: database, dir: dir}, nil
}

// Location returns the database file path.
func (s *SQLiteStore) Location() string { return filepath.Join(s.dir, db.FileName) }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (s *SQLiteStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return db.GetArtifact(ctx, s.db, name)
}

func (s *SQLiteStore) Write(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	return db.PutArtifact(ctx, s.db, name, data)
}

func (s *SQLiteStore) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return db.DeleteArtifact(ctx, s.db, name)
}

func (s *SQLiteStore) Stat(ctx context.Context, name string) (*Info, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	info, err := db.StatArtifact(ctx, s.db, name)
	if err != nil || info == nil {
		return nil, err
	}
	return &Info{Name: info.Name, Size: info.Size, SHA256: info.SHA256, UpdatedAt: info.UpdatedAt}, nil
}
