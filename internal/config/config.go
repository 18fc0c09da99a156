package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Refdata RefdataConfig `yaml:"refdata" mapstructure:"refdata"`
	Score   ScoreConfig   `yaml:"score" mapstructure:"score"`
	Fills   FillsConfig   `yaml:"fills" mapstructure:"fills"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PathsConfig locates the input snapshot and output directory.
type PathsConfig struct {
	PharmacyCSV    string `yaml:"pharmacy_csv" mapstructure:"pharmacy_csv"`
	StateTotalsCSV string `yaml:"state_totals_csv" mapstructure:"state_totals_csv"`
	ReferenceDir   string `yaml:"reference_dir" mapstructure:"reference_dir"`
	OutputDir      string `yaml:"output_dir" mapstructure:"output_dir"`
}

// RefdataConfig configures reference-data acquisition.
type RefdataConfig struct {
	CrosswalkURL    string `yaml:"crosswalk_url" mapstructure:"crosswalk_url"`
	AdjacencyURL    string `yaml:"adjacency_url" mapstructure:"adjacency_url"`
	RUCCURL         string `yaml:"rucc_url" mapstructure:"rucc_url"`
	PartDURL        string `yaml:"partd_url" mapstructure:"partd_url"`
	CountyShapefile string `yaml:"county_shapefile" mapstructure:"county_shapefile"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries      int    `yaml:"max_retries" mapstructure:"max_retries"`
	Workers         int    `yaml:"workers" mapstructure:"workers"`
}

// ScoreConfig configures composite scoring and grading.
type ScoreConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
}

// FillsConfig configures the allocation of state claim totals.
type FillsConfig struct {
	LossPerFill float64 `yaml:"loss_per_fill" mapstructure:"loss_per_fill"`
}

// StoreConfig configures the run-registry backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPOSURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("paths.pharmacy_csv", "data/pharmacies_clean.csv")
	v.SetDefault("paths.state_totals_csv", "data/state_glp1_totals.csv")
	v.SetDefault("paths.reference_dir", "reference_data")
	v.SetDefault("paths.output_dir", "out")
	v.SetDefault("refdata.crosswalk_url", "https://www2.census.gov/geo/docs/maps-data/data/rel2020/zcta520/tab20_zcta520_county20_natl.txt")
	v.SetDefault("refdata.adjacency_url", "https://www2.census.gov/geo/docs/reference/county_adjacency2024.txt")
	v.SetDefault("refdata.rucc_url", "https://www.ers.usda.gov/media/5768/2023-rural-urban-continuum-codes.csv")
	v.SetDefault("refdata.partd_url", "https://data.cms.gov/sites/default/files/2025-04/0d5915ce-002c-4d87-bde8-24ffb08bb6cc/MUP_DPR_RY25_P04_V10_DY23_NPIBN.csv")
	v.SetDefault("refdata.user_agent", "exposure-cli/1.0")
	v.SetDefault("refdata.timeout_secs", 60)
	v.SetDefault("refdata.max_retries", 3)
	v.SetDefault("refdata.workers", 8)
	v.SetDefault("fills.loss_per_fill", 37.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "exposure.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
