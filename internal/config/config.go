package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EXIF backends understood by the gateway
const (
	ExifBackendImagemeta = "imagemeta"
	ExifBackendGoexif    = "goexif"
)

type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ImageFetchTimeout  time.Duration `yaml:"image_fetch_timeout"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	LogLevel           string        `yaml:"log_level"`

	Forensics ForensicsConfig `yaml:"forensics"`
	Azure     AzureConfig     `yaml:"azure"`
}

// ForensicsConfig tunes the analysis pipeline
type ForensicsConfig struct {
	ELAQuality             int           `yaml:"ela_quality"`
	ExifBackend            string        `yaml:"exif_backend"`
	ExifToolPath           string        `yaml:"exiftool_path"`
	ToolTimeout            time.Duration `yaml:"tool_timeout"`
	TempDir                string        `yaml:"temp_dir"`
	ScreenshotMatchRotated bool          `yaml:"screenshot_match_rotated"`
	CloneBlockSize         int           `yaml:"clone_block_size"`
	MaxWorkers             int           `yaml:"max_workers"`
	Transforms             []string      `yaml:"transforms"`
}

// Pixel transforms that can be enabled
const (
	TransformEdges  = "edge_detection"
	TransformELA    = "error_level_analysis"
	TransformClones = "clone_detection"
)

// AzureConfig holds blob storage credentials for azblob:// sources
type AzureConfig struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     60 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		AnalysisTimeout:    45 * time.Second,
		MaxRequestBodySize: 32 * 1024 * 1024, // 32MB
		LogLevel:           "info",
		Forensics: ForensicsConfig{
			ELAQuality:     90,
			ExifBackend:    ExifBackendImagemeta,
			ExifToolPath:   "exiftool",
			ToolTimeout:    20 * time.Second,
			TempDir:        os.TempDir(),
			CloneBlockSize: 32,
			Transforms:     []string{TransformEdges, TransformELA, TransformClones},
		},
	}
}

// LoadFromEnv builds the configuration from defaults and environment variables
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads an optional YAML file and then applies environment overrides.
// An empty path falls back to FORENSICS_CONFIG; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FORENSICS_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// keep defaults
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}

	f := c.Forensics
	if f.ELAQuality < 1 || f.ELAQuality > 100 {
		return fmt.Errorf("ELA_QUALITY must be within 1-100 (got %d)", f.ELAQuality)
	}
	if f.ExifBackend != ExifBackendImagemeta && f.ExifBackend != ExifBackendGoexif {
		return fmt.Errorf("unsupported EXIF_BACKEND: %q", f.ExifBackend)
	}
	if strings.TrimSpace(f.TempDir) == "" {
		return fmt.Errorf("TEMP_DIR must not be empty")
	}
	if f.ToolTimeout <= 0 {
		return fmt.Errorf("TOOL_TIMEOUT must be > 0 (got %s)", f.ToolTimeout)
	}
	if f.CloneBlockSize < 8 {
		return fmt.Errorf("CLONE_BLOCK_SIZE must be >= 8 (got %d)", f.CloneBlockSize)
	}
	if f.MaxWorkers < 0 {
		return fmt.Errorf("MAX_WORKERS must be >= 0 (got %d)", f.MaxWorkers)
	}
	for _, t := range f.Transforms {
		switch t {
		case TransformEdges, TransformELA, TransformClones:
		default:
			return fmt.Errorf("unknown transform in TRANSFORMS: %q", t)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)

	f := &cfg.Forensics
	f.ELAQuality = int(parseIntOrDefault("ELA_QUALITY", int64(f.ELAQuality)))
	f.ExifBackend = strings.ToLower(getEnvOrDefault("EXIF_BACKEND", f.ExifBackend))
	f.ExifToolPath = getEnvOrDefault("EXIFTOOL_PATH", f.ExifToolPath)
	f.ToolTimeout = parseDurationOrDefault("TOOL_TIMEOUT", f.ToolTimeout)
	f.TempDir = getEnvOrDefault("TEMP_DIR", f.TempDir)
	f.ScreenshotMatchRotated = parseBoolOrDefault("SCREENSHOT_MATCH_ROTATED", f.ScreenshotMatchRotated)
	f.CloneBlockSize = int(parseIntOrDefault("CLONE_BLOCK_SIZE", int64(f.CloneBlockSize)))
	f.MaxWorkers = int(parseIntOrDefault("MAX_WORKERS", int64(f.MaxWorkers)))
	f.Transforms = parseListOrDefault("TRANSFORMS", f.Transforms)

	cfg.Azure.AccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.Azure.AccountName)
	cfg.Azure.AccountKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.Azure.AccountKey)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
