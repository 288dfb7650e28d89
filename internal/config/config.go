package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// LogLevel is the zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// Locale selects day labels and report text: "en" or "ar".
	Locale string `json:"locale,omitempty"`

	// SugarUnit is the initial glucose display unit ("mg/dL" or "mmol/L").
	// A preference saved through the settings screen overrides it.
	SugarUnit string `json:"sugar_unit,omitempty"`

	// StorageDriver selects the key-value backend: sqlite (default), postgres, memory.
	StorageDriver string `json:"storage_driver,omitempty"`

	// PostgresDSN is used when StorageDriver is "postgres".
	PostgresDSN string `json:"postgres_dsn,omitempty"`

	// HistoryLimit is the number of samples fetched by a home-screen sync.
	HistoryLimit int `json:"history_limit,omitempty"`

	// ReportHistoryLimit is the number of samples fetched before exporting a report.
	ReportHistoryLimit int `json:"report_history_limit,omitempty"`

	// AuthTimeoutSeconds bounds how long a health source authorization may take.
	AuthTimeoutSeconds int `json:"auth_timeout_seconds,omitempty"`

	// RowsPerPage is the number of table rows on each report page.
	RowsPerPage int `json:"rows_per_page,omitempty"`

	// NightscoutURL enables the Nightscout health source when set.
	NightscoutURL    string `json:"nightscout_url,omitempty"`
	NightscoutSecret string `json:"nightscout_secret,omitempty"`
	NightscoutToken  string `json:"nightscout_token,omitempty"`

	// HealthFile enables the JSONL file health source when set (and no Nightscout URL).
	HealthFile string `json:"health_file,omitempty"`

	// OCRCommand is the external text recognizer used by scan.
	// The image path is appended as the first argument after the program name.
	OCRCommand []string `json:"ocr_command,omitempty"`

	// Share selects where exported reports are published: "fs" (default) or "s3".
	Share       string `json:"share,omitempty"`
	ShareDir    string `json:"share_dir,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty"`
	S3Region    string `json:"s3_region,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty"`
	S3PathStyle bool   `json:"s3_path_style,omitempty"`

	// AllowedPaths is an allowlist of directories for report export.
	// Paths outside ~/.glyco/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for report export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:           "info",
		Locale:             "en",
		SugarUnit:          "mg/dL",
		StorageDriver:      "sqlite",
		HistoryLimit:       10,
		ReportHistoryLimit: 200,
		AuthTimeoutSeconds: 30,
		RowsPerPage:        25,
		OCRCommand:         []string{"tesseract", "{image}", "stdout", "--psm", "7"},
		Share:              "fs",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.glyco.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.glyco) and repo (.glyco) directories.
// Repo config is found by walking upward from startDir to find the nearest .glyco/config.json.
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

// FindRepoConfig walks upward from startDir to find the nearest .glyco/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".glyco", "config.json")
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
		return nil, err
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
// Overlay values take precedence for scalars; arrays are merged and deduplicated,
// except OCRCommand which is an argv and is replaced wholesale.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		LogLevel:           pickString(overlay.LogLevel, base.LogLevel),
		Locale:             pickString(overlay.Locale, base.Locale),
		SugarUnit:          pickString(overlay.SugarUnit, base.SugarUnit),
		StorageDriver:      pickString(overlay.StorageDriver, base.StorageDriver),
		PostgresDSN:        pickString(overlay.PostgresDSN, base.PostgresDSN),
		HistoryLimit:       pickInt(overlay.HistoryLimit, base.HistoryLimit),
		ReportHistoryLimit: pickInt(overlay.ReportHistoryLimit, base.ReportHistoryLimit),
		AuthTimeoutSeconds: pickInt(overlay.AuthTimeoutSeconds, base.AuthTimeoutSeconds),
		RowsPerPage:        pickInt(overlay.RowsPerPage, base.RowsPerPage),
		NightscoutURL:      pickString(overlay.NightscoutURL, base.NightscoutURL),
		NightscoutSecret:   pickString(overlay.NightscoutSecret, base.NightscoutSecret),
		NightscoutToken:    pickString(overlay.NightscoutToken, base.NightscoutToken),
		HealthFile:         pickString(overlay.HealthFile, base.HealthFile),
		Share:              pickString(overlay.Share, base.Share),
		ShareDir:           pickString(overlay.ShareDir, base.ShareDir),
		S3Bucket:           pickString(overlay.S3Bucket, base.S3Bucket),
		S3Region:           pickString(overlay.S3Region, base.S3Region),
		S3Endpoint:         pickString(overlay.S3Endpoint, base.S3Endpoint),
		DBMaxOpenConns:     pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:     pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	result.OCRCommand = base.OCRCommand
	if len(overlay.OCRCommand) > 0 {
		result.OCRCommand = overlay.OCRCommand
	}

	// Booleans: overlay wins if true, else base
	result.S3PathStyle = base.S3PathStyle || overlay.S3PathStyle
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
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

// IsArabic reports whether locale selects Arabic text: "ar", "ar-*" or "ar_*".
func IsArabic(locale string) bool {
	l := strings.ToLower(strings.TrimSpace(locale))
	return l == "ar" || strings.HasPrefix(l, "ar-") || strings.HasPrefix(l, "ar_")
}
