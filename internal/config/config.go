package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir     string `toml:"work_dir"`
	LogDir      string `toml:"log_dir"`
	CatalogPath string `toml:"catalog_path"`
	FilesRoot   string `toml:"files_root"`
	VideosRoot  string `toml:"videos_root"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Encoder contains external binary configuration.
type Encoder struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Threads       int    `toml:"threads"`
}

// Realtime contains the realtime event publishing endpoint.
type Realtime struct {
	Endpoint       string `toml:"endpoint"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config is the root worker configuration.
type Config struct {
	Paths    Paths             `toml:"paths"`
	Logging  Logging           `toml:"logging"`
	Encoder  Encoder           `toml:"encoder"`
	Realtime Realtime          `toml:"realtime"`
	Keys     map[string]string `toml:"keys"`

	// PublicHost is the externally reachable base URL used when building
	// sprite preview URLs in timeline cue sheets.
	PublicHost string `toml:"public_host"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := defaultStateDir()
	return &Config{
		Paths: Paths{
			WorkDir:     filepath.Join(os.TempDir(), "prism"),
			LogDir:      filepath.Join(base, "logs"),
			CatalogPath: filepath.Join(base, "catalog.db"),
			FilesRoot:   filepath.Join(base, "files"),
			VideosRoot:  filepath.Join(base, "videos"),
		},
		Logging: Logging{Level: "info", Format: "console"},
		Encoder: Encoder{FFmpegBinary: "ffmpeg", FFprobeBinary: "ffprobe", Threads: 12},
		Realtime: Realtime{
			RequestTimeout: 10,
		},
		Keys:       map[string]string{},
		PublicHost: "http://localhost/",
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.toml")
}

// Load reads a configuration file, layering it over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the file at path when it exists and falls back to
// defaults when it does not.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir is required")
	}
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path is required")
	}
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		return errors.New("encoder.ffmpeg_binary is required")
	}
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		return errors.New("encoder.ffprobe_binary is required")
	}
	if c.Encoder.Threads < 0 {
		return errors.New("encoder.threads must not be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// EnsureDirectories creates the directories the worker needs at startup.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.WorkDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.CatalogPath),
		c.Paths.FilesRoot,
		c.Paths.VideosRoot,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Key returns the decryption key registered for a version, falling back to
// the PRISM_OPENSSL_KEY_V<version> environment variable.
func (c *Config) Key(version string) (string, bool) {
	if key, ok := c.Keys[version]; ok && key != "" {
		return key, true
	}
	if key := os.Getenv("PRISM_OPENSSL_KEY_V" + version); key != "" {
		return key, true
	}
	return "", false
}

// Sample returns the embedded sample configuration.
func Sample() string {
	return sampleConfig
}

// WriteSample writes the embedded sample configuration to path unless the
// file already exists.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func defaultStateDir() string {
	if dir := os.Getenv("PRISM_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "prism-state")
	}
	return filepath.Join(home, ".local", "share", "prism")
}
