// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with code that runs without a loaded config.
const (
	DefaultSanityCeiling = 5.0
	DefaultOrigin        = "Unknown"
	DefaultRandomIDMin   = 1000000
	DefaultRandomIDMax   = 9999999
	DefaultPairTolerance = 5.0
	DefaultWorkers       = 4
)

// setDefaultConfig registers default values with viper.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlite.path", "visor.db")
	viper.SetDefault("database.mysql.username", "")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "visor")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.slowquerythreshold", 200*time.Millisecond)

	viper.SetDefault("images.path", "images/")

	viper.SetDefault("ingest.sanityceiling", DefaultSanityCeiling)
	viper.SetDefault("ingest.defaultorigin", DefaultOrigin)
	viper.SetDefault("ingest.randomidmin", DefaultRandomIDMin)
	viper.SetDefault("ingest.randomidmax", DefaultRandomIDMax)

	viper.SetDefault("simulation.illuminated", true)
	viper.SetDefault("simulation.workers", DefaultWorkers)
	viper.SetDefault("simulation.pairtolerance", DefaultPairTolerance)
	viper.SetDefault("simulation.cachettl", time.Hour)
	viper.SetDefault("simulation.cameras", []string{"MCAM", "ZCAM"})

	viper.SetDefault("metrics.textfile", "")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/visor.log")
	viper.SetDefault("logging.file_output.level", "info")
}

// DefaultSettings returns settings populated only from defaults, for tests
// and tools that run without a config file.
func DefaultSettings() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Type:               "sqlite",
			SQLite:             SQLiteSettings{Path: "visor.db"},
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Images: ImageSettings{Path: "images/"},
		Ingest: IngestSettings{
			SanityCeiling: DefaultSanityCeiling,
			DefaultOrigin: DefaultOrigin,
			RandomIDMin:   DefaultRandomIDMin,
			RandomIDMax:   DefaultRandomIDMax,
		},
		Simulation: SimulationSettings{
			Illuminated:   true,
			Workers:       DefaultWorkers,
			PairTolerance: DefaultPairTolerance,
			CacheTTL:      time.Hour,
			Cameras:       []string{"MCAM", "ZCAM"},
		},
	}
}
