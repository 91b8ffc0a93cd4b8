// =============================================================================
// GDEC Price Checker - Configuration Module
// =============================================================================
//
// This module loads the application configuration and the per-platform
// override files.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults
//   2. Main config file (config.yaml, optional)
//   3. .env file in the working directory (optional)
//   4. PRICECHECK_* environment variables
//
// PLATFORM OVERRIDES (configs/*.yaml):
//   Each file adjusts one platform/mode pair: sheet names, header rows and
//   the expected header text of logical fields. Anything left out keeps the
//   built-in value.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (PRICECHECK_OUTPUT_DIR).
const EnvPrefix = "PRICECHECK"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// OutputDir is where reconciled workbooks are written when --out is not given.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// OutputNameFormat builds the output file name.
	// Placeholders: {original}, {platform}, {mode}, {uuid}, {timestamp}
	// Default: "Updated_{original}"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format"`

	// ConfigsDir holds the platform override files.
	// Default: "./configs"
	ConfigsDir string `mapstructure:"configs_dir" yaml:"configs_dir"`

	// LogLevel: "debug", "info", "warn", "error"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat: "json", "console", "auto"
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// LogOutput: "stderr", "stdout" or a file path
	LogOutput string `mapstructure:"log_output" yaml:"log_output"`

	// Server configures the HTTP front-end.
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// ServerConfig holds the HTTP front-end settings.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxUploadMB caps the size of a multipart request. Default: 32
	MaxUploadMB int64 `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	// AllowedOrigins enables CORS for browser front-ends. Empty disables it.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LoadMainConfig loads the main configuration.
//
// PARAMETERS:
//   - configPath: path to a YAML config file, or "" to use defaults and
//     environment only
//
// RETURNS:
//   - the validated configuration
//   - an error if the file cannot be read or a value is invalid
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// A missing .env is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setMainConfigDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// setMainConfigDefaults registers every key with viper so environment
// variables are picked up by Unmarshal.
func setMainConfigDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "./output")
	v.SetDefault("output_name_format", "Updated_{original}")
	v.SetDefault("configs_dir", "./configs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.allowed_origins", []string{})
}

// applyMainConfigDefaults fills values a config file set to empty.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "Updated_{original}"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "auto"
	}
	if config.LogOutput == "" {
		config.LogOutput = "stderr"
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxUploadMB <= 0 {
		config.Server.MaxUploadMB = 32
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if !strings.Contains(config.OutputNameFormat, "{original}") &&
		!strings.Contains(config.OutputNameFormat, "{uuid}") &&
		!strings.Contains(config.OutputNameFormat, "{timestamp}") {
		return fmt.Errorf("output_name_format %q must contain {original}, {uuid} or {timestamp}", config.OutputNameFormat)
	}

	switch strings.ToLower(config.LogFormat) {
	case "json", "console", "pretty", "auto":
	default:
		return fmt.Errorf("unknown log_format %q", config.LogFormat)
	}

	if _, err := os.Stat(config.OutputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", config.OutputDir, err)
		}
	}
	return nil
}

// =============================================================================
// PLATFORM OVERRIDES
// =============================================================================

// Known platform and mode names accepted in override files.
var (
	KnownPlatforms = []string{"lazada", "shopee", "tiktok"}
	KnownModes     = []string{"regular", "manual"}
)

// PlatformConfig overrides the built-in behaviour of one platform/mode pair.
// Nil or empty values keep the built-in setting.
type PlatformConfig struct {
	// Platform is "lazada", "shopee" or "tiktok".
	Platform string `yaml:"platform"`

	// Mode is "regular" or "manual".
	Mode string `yaml:"mode"`

	// PromotionSheet is the campaign list sheet name.
	PromotionSheet string `yaml:"promotion_sheet"`

	// PromotionHeaderRow is the 0-based header row of the campaign list.
	PromotionHeaderRow *int `yaml:"promotion_header_row"`

	// Target adjusts where the target header and data start.
	Target TargetLayout `yaml:"target"`

	// TargetFields maps logical field names (key, price, ...) to header text.
	TargetFields map[string]string `yaml:"target_fields"`

	// PromotionFields maps logical field names to header text.
	PromotionFields map[string]string `yaml:"promotion_fields"`

	// Sheets renames the output sheets.
	Sheets SheetNames `yaml:"sheets"`

	// SourceFile is the file the override was loaded from.
	SourceFile string `yaml:"-"`
}

// TargetLayout locates the target header and data, 0-based.
type TargetLayout struct {
	HeaderRow    *int `yaml:"header_row"`
	DataStartRow *int `yaml:"data_start_row"`
}

// SheetNames names the output partitions.
type SheetNames struct {
	Eligible   string `yaml:"eligible"`
	Escalation string `yaml:"escalation"`
	Unaffected string `yaml:"unaffected"`
}

// Key identifies the platform/mode pair an override applies to.
func (p *PlatformConfig) Key() string {
	return p.Platform + "/" + p.Mode
}

// LoadPlatformConfigs loads all override files from a directory. A missing
// directory yields no overrides.
//
// RETURNS:
//   - overrides keyed by "platform/mode"
//   - an error if a file cannot be parsed or names an unknown platform or mode
func LoadPlatformConfigs(configsDir string) (map[string]*PlatformConfig, error) {
	configs := make(map[string]*PlatformConfig)

	if _, err := os.Stat(configsDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := loadPlatformConfig(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if prev, dup := configs[config.Key()]; dup {
			return nil, fmt.Errorf("%s and %s both configure %s", prev.SourceFile, file, config.Key())
		}
		configs[config.Key()] = config
	}
	return configs, nil
}

func loadPlatformConfig(filePath string) (*PlatformConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config PlatformConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	config.SourceFile = filePath
	config.Platform = strings.ToLower(strings.TrimSpace(config.Platform))
	config.Mode = strings.ToLower(strings.TrimSpace(config.Mode))
	if config.Mode == "" {
		config.Mode = "regular"
	}

	if !contains(KnownPlatforms, config.Platform) {
		return nil, fmt.Errorf("unknown platform %q", config.Platform)
	}
	if !contains(KnownModes, config.Mode) {
		return nil, fmt.Errorf("unknown mode %q", config.Mode)
	}
	for _, row := range []*int{config.PromotionHeaderRow, config.Target.HeaderRow, config.Target.DataStartRow} {
		if row != nil && *row < 0 {
			return nil, fmt.Errorf("row numbers must not be negative")
		}
	}
	return &config, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
