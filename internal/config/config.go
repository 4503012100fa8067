package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Artifact storage backends.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	// ArchiveDir is the directory holding the archive's data files (account.js, tweets.js).
	ArchiveDir string `json:"archive_dir,omitempty"`

	// DataDir holds the stage artifacts for the fs backend and the database for the sqlite backend.
	DataDir string `json:"data_dir,omitempty"`

	// ArtifactBackend selects where stage artifacts live: fs, sqlite or memory.
	// memory is only useful for one-shot runs; nothing survives the process.
	ArtifactBackend string `json:"artifact_backend,omitempty" validate:"omitempty,oneof=fs sqlite memory"`

	// LinkHost is the host used when building post permalinks.
	LinkHost string `json:"link_host,omitempty" validate:"omitempty,hostname_rfc1123"`

	// TopN is the row limit for the top-engagement reports.
	TopN int `json:"top_n,omitempty" validate:"omitempty,min=1,max=100"`

	// MonthLimit is the group limit for the activity-by-month report.
	MonthLimit int `json:"month_limit,omitempty" validate:"omitempty,min=1,max=120"`

	// DisabledReports lists report names to skip. Unknown names are logged as warnings.
	DisabledReports []string `json:"disabled_reports,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely.
	// Known types: "pipeline", "report", "artifact".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	LogLevel  string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error off disabled"`
	LogFormat string `json:"log_format,omitempty" validate:"omitempty,oneof=console json"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ArchiveDir:      filepath.Join("x-archive", "data"),
		DataDir:         "data",
		ArtifactBackend: BackendFS,
		LinkHost:        "x.com",
		TopN:            3,
		MonthLimit:      10,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.xstats.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.xstats) and repo (.xstats) directories.
// Repo config is found by walking upward from startDir to find the nearest .xstats/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// LoadExplicit loads a single config file given by the user (--config).
// Unlike Load, a missing file is an error.
func LoadExplicit(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return loadFile(path)
}

// FindRepoConfig walks upward from startDir to find the nearest .xstats/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".xstats", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		ArchiveDir:      pick(overlay.ArchiveDir, base.ArchiveDir),
		DataDir:         pick(overlay.DataDir, base.DataDir),
		ArtifactBackend: pick(overlay.ArtifactBackend, base.ArtifactBackend),
		LinkHost:        pick(overlay.LinkHost, base.LinkHost),
		LogLevel:        pick(overlay.LogLevel, base.LogLevel),
		LogFormat:       pick(overlay.LogFormat, base.LogFormat),
	}

	result.TopN = overlay.TopN
	if result.TopN == 0 {
		result.TopN = base.TopN
	}
	result.MonthLimit = overlay.MonthLimit
	if result.MonthLimit == 0 {
		result.MonthLimit = base.MonthLimit
	}

	result.DisabledReports = mergeStringSlice(base.DisabledReports, overlay.DisabledReports)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// ApplyEnv overlays XSTATS_* environment variables onto cfg.
// Invalid integers are reported rather than silently ignored.
func ApplyEnv(cfg *Config) error {
	env := &Config{
		ArchiveDir:      strings.TrimSpace(os.Getenv("XSTATS_ARCHIVE_DIR")),
		DataDir:         strings.TrimSpace(os.Getenv("XSTATS_DATA_DIR")),
		ArtifactBackend: strings.TrimSpace(os.Getenv("XSTATS_ARTIFACT_BACKEND")),
		LinkHost:        strings.TrimSpace(os.Getenv("XSTATS_LINK_HOST")),
		LogLevel:        strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:       strings.TrimSpace(os.Getenv("LOG_FORMAT")),
	}
	for key, dst := range map[string]*int{"XSTATS_TOP_N": &env.TopN, "XSTATS_MONTH_LIMIT": &env.MonthLimit} {
		s := strings.TrimSpace(os.Getenv(key))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, s)
		}
		*dst = n
	}
	*cfg = *Merge(cfg, env)
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// pick returns overlay if set, else base.
func pick(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
