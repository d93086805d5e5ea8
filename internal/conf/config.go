// Package conf provides configuration management for visor.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/visorlab/visor/internal/errors"
	"github.com/visorlab/visor/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings contains all configuration options for visor.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug logging everywhere

	Database   DatabaseSettings     `yaml:"database"`
	Images     ImageSettings        `yaml:"images"`
	Ingest     IngestSettings       `yaml:"ingest"`
	Simulation SimulationSettings   `yaml:"simulation"`
	Metrics    MetricsSettings      `yaml:"metrics"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

// DatabaseSettings selects and configures the record store.
type DatabaseSettings struct {
	Type               string         `yaml:"type"` // sqlite or mysql
	SQLite             SQLiteSettings `yaml:"sqlite"`
	MySQL              MySQLSettings  `yaml:"mysql"`
	SlowQueryThreshold time.Duration  `yaml:"slowquerythreshold"` // 0 disables slow query warnings
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Path string `yaml:"path"` // path to the database file, ":memory:" for tests
}

// MySQLSettings contains settings for a shared MySQL database.
type MySQLSettings struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

// ImageSettings configures where bundle images are stored.
type ImageSettings struct {
	Path string `yaml:"path"`
}

// IngestSettings tunes the spreadsheet ingestion pipeline.
type IngestSettings struct {
	SanityCeiling float64 `yaml:"sanityceiling"` // reflectance at or above this is rejected
	DefaultOrigin string  `yaml:"defaultorigin"` // origin assigned when a sheet names none
	RandomIDMin   int     `yaml:"randomidmin"`
	RandomIDMax   int     `yaml:"randomidmax"`
}

// SimulationSettings tunes instrument simulation.
type SimulationSettings struct {
	Illuminated   bool          `yaml:"illuminated"`   // weight by illumination when the filter set has one
	Workers       int           `yaml:"workers"`       // parallel simulations
	PairTolerance float64       `yaml:"pairtolerance"` // nm, virtual filter pairing distance
	CacheTTL      time.Duration `yaml:"cachettl"`      // lifetime of cached virtual filter pairings
	Cameras       []string      `yaml:"cameras"`       // filter sets treated as clustered multi-band cameras
}

// MetricsSettings configures Prometheus textfile export.
type MetricsSettings struct {
	TextFile string `yaml:"textfile"` // empty disables export
}

// IsCamera reports whether the filter set short name is configured as a camera.
func (s *SimulationSettings) IsCamera(shortName string) bool {
	for _, c := range s.Cameras {
		if strings.EqualFold(c, shortName) {
			return true
		}
	}
	return false
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// An empty configFile searches the default locations and writes the embedded
// default config on first run.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix("VISOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Category(errors.CategoryConfiguration).
				FileContext(configFile).
				Context("operation", "read-config").
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(configPath).
			Context("operation", "write-default-config").
			Build()
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance, nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			FileContext(configPath).
			Context("operation", "replace-config").
			Build()
	}

	return nil
}
