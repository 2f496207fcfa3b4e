// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rasterd/cogstream/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Logging    LoggingConfig            `mapstructure:"logging"`
	Output     OutputConfig             `mapstructure:"output"`
	Conversion ConversionConfig         `mapstructure:"conversion"`
	Upload     UploadConfig             `mapstructure:"upload"`
	Ops        OpsConfig                `mapstructure:"ops"`
	Engine     EngineConfig             `mapstructure:"engine"`
	Sync       SyncConfig               `mapstructure:"sync"`
	Catalog    CatalogConfig            `mapstructure:"catalog"`
	Inventory  InventoryConfig          `mapstructure:"inventory"`
	Products   map[string]ProductConfig `mapstructure:"products"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// OutputConfig holds the staging area configuration.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// ConversionConfig holds batch conversion configuration.
type ConversionConfig struct {
	Workers           int    `mapstructure:"workers"`
	BandFailurePolicy string `mapstructure:"band_failure_policy"` // continue, hold
	ScratchDir        string `mapstructure:"scratch_dir"`         // empty uses the system temp dir
}

// UploadConfig holds upload watcher configuration.
type UploadConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	StartupGrace time.Duration `mapstructure:"startup_grace"` // zero disables the initial bound
	Retain       bool          `mapstructure:"retain"`
	EventWake    bool          `mapstructure:"event_wake"`
}

// OpsConfig holds the operational HTTP server configuration.
type OpsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// EngineConfig holds raster engine configuration.
type EngineConfig struct {
	TranslateBinary  string            `mapstructure:"translate_binary"`
	AddoBinary       string            `mapstructure:"addo_binary"`
	InfoBinary       string            `mapstructure:"info_binary"`
	NcdumpBinary     string            `mapstructure:"ncdump_binary"`
	MetadataVariable string            `mapstructure:"metadata_variable"`
	Options          map[string]string `mapstructure:"options"` // per-invocation runtime options
	OverviewLevels   []int             `mapstructure:"overview_levels"`
	BlockSize        int               `mapstructure:"block_size"`
	Compress         string            `mapstructure:"compress"`
	ZLevel           int               `mapstructure:"zlevel"`
	Predictor        int               `mapstructure:"predictor"`
}

// SyncConfig holds remote sync configuration.
type SyncConfig struct {
	Binary      string   `mapstructure:"binary"`
	Profile     string   `mapstructure:"profile"`
	EndpointURL string   `mapstructure:"endpoint_url"`
	ExtraArgs   []string `mapstructure:"extra_args"`
}

// CatalogConfig holds index database configuration.
type CatalogConfig struct {
	Driver string `mapstructure:"driver"` // postgres, sqlite3
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// InventoryConfig holds remote inventory configuration.
type InventoryConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ProductConfig holds one product's conversion policy.
type ProductConfig struct {
	TimeMode         string            `mapstructure:"time_mode"`
	SrcTemplate      string            `mapstructure:"src_template"`
	DestTemplate     string            `mapstructure:"dest_template"`
	Bucket           string            `mapstructure:"bucket"`
	AWSDir           string            `mapstructure:"aws_dir"`
	AWSDirSuffix     string            `mapstructure:"aws_dir_suffix_template"`
	ResamplingMethod string            `mapstructure:"resampling_method"`
	BandResampling   map[string]string `mapstructure:"band_resampling"`
	BandAllowList    []string          `mapstructure:"band_allow_list"`
	BandDenyList     []string          `mapstructure:"band_deny_list"`
	NoPyramidBands   []string          `mapstructure:"no_pyramid_bands"`
}

// Policy converts the product configuration into a validated domain policy.
func (p ProductConfig) Policy(name string) (domain.Policy, error) {
	mode, err := domain.ParseTimeMode(p.TimeMode)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("product %s: %w", name, err)
	}

	policy := domain.Policy{
		Product:              name,
		TimeMode:             mode,
		SourceTemplate:       p.SrcTemplate,
		DestTemplate:         p.DestTemplate,
		Bucket:               p.Bucket,
		AWSDir:               p.AWSDir,
		AWSDirSuffixTemplate: p.AWSDirSuffix,
		DefaultResampling:    p.ResamplingMethod,
		BandResampling:       p.BandResampling,
		BandAllowList:        p.BandAllowList,
		BandDenyList:         p.BandDenyList,
		NoPyramidBands:       p.NoPyramidBands,
	}
	policy.Normalize()
	if err := policy.Validate(); err != nil {
		return domain.Policy{}, fmt.Errorf("product %s: %w", name, err)
	}
	return policy, nil
}

// Defaults sets the default configuration values.
func Defaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Conversion defaults
	viper.SetDefault("conversion.workers", 4)
	viper.SetDefault("conversion.band_failure_policy", "continue")
	viper.SetDefault("conversion.scratch_dir", "")

	// Upload defaults
	viper.SetDefault("upload.poll_interval", time.Second)
	viper.SetDefault("upload.idle_timeout", 5*time.Minute)
	viper.SetDefault("upload.startup_grace", time.Duration(0))
	viper.SetDefault("upload.retain", false)
	viper.SetDefault("upload.event_wake", false)

	// Ops defaults
	viper.SetDefault("ops.enabled", false)
	viper.SetDefault("ops.host", "0.0.0.0")
	viper.SetDefault("ops.port", 9100)
	viper.SetDefault("ops.read_timeout", 30*time.Second)
	viper.SetDefault("ops.write_timeout", 30*time.Second)

	// Engine defaults
	viper.SetDefault("engine.translate_binary", "gdal_translate")
	viper.SetDefault("engine.addo_binary", "gdaladdo")
	viper.SetDefault("engine.info_binary", "gdalinfo")
	viper.SetDefault("engine.ncdump_binary", "ncdump")
	viper.SetDefault("engine.metadata_variable", "dataset")
	viper.SetDefault("engine.options", map[string]string{
		"GDAL_DISABLE_READDIR_ON_OPEN":     "YES",
		"CPL_VSIL_CURL_ALLOWED_EXTENSIONS": ".tif",
	})
	viper.SetDefault("engine.overview_levels", []int{2, 4, 8, 16, 32})
	viper.SetDefault("engine.block_size", 512)
	viper.SetDefault("engine.compress", "DEFLATE")
	viper.SetDefault("engine.zlevel", 9)
	viper.SetDefault("engine.predictor", 2)

	// Sync defaults
	viper.SetDefault("sync.binary", "aws")

	// Catalog defaults
	viper.SetDefault("catalog.driver", "postgres")
	viper.SetDefault("catalog.table", "datasets")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("COGSTREAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/cogstream")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Products) == 0 {
		cfg.Products = DefaultProducts()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Conversion.Workers < 1 {
		return &domain.ConfigError{
			Field:   "conversion.workers",
			Message: fmt.Sprintf("invalid worker count: %d", c.Conversion.Workers),
		}
	}

	switch c.Conversion.BandFailurePolicy {
	case "continue", "hold":
	default:
		return &domain.ConfigError{
			Field:   "conversion.band_failure_policy",
			Message: fmt.Sprintf("unknown policy: %s", c.Conversion.BandFailurePolicy),
		}
	}

	if c.Upload.PollInterval <= 0 {
		return &domain.ConfigError{
			Field:   "upload.poll_interval",
			Message: fmt.Sprintf("interval must be positive, got %s", c.Upload.PollInterval),
		}
	}
	if c.Upload.IdleTimeout <= 0 {
		return &domain.ConfigError{
			Field:   "upload.idle_timeout",
			Message: fmt.Sprintf("timeout must be positive, got %s", c.Upload.IdleTimeout),
		}
	}

	if c.Ops.Enabled {
		if c.Ops.Port < 1 || c.Ops.Port > 65535 {
			return &domain.ConfigError{
				Field:   "ops.port",
				Message: fmt.Sprintf("port out of range: %d", c.Ops.Port),
			}
		}
	}

	if c.Engine.ZLevel < 1 || c.Engine.ZLevel > 9 {
		return &domain.ConfigError{
			Field:   "engine.zlevel",
			Message: fmt.Sprintf("deflate level out of range: %d", c.Engine.ZLevel),
		}
	}
	if c.Engine.BlockSize < 16 {
		return &domain.ConfigError{
			Field:   "engine.block_size",
			Message: fmt.Sprintf("block size too small: %d", c.Engine.BlockSize),
		}
	}

	switch c.Catalog.Driver {
	case "postgres", "sqlite3":
	default:
		return &domain.ConfigError{
			Field:   "catalog.driver",
			Message: fmt.Sprintf("unknown driver: %s", c.Catalog.Driver),
		}
	}

	for name, product := range c.Products {
		if _, err := product.Policy(name); err != nil {
			return err
		}
	}

	return nil
}

// Policies converts all configured products into validated domain policies.
func (c *Config) Policies() (map[string]domain.Policy, error) {
	policies := make(map[string]domain.Policy, len(c.Products))
	for name, product := range c.Products {
		policy, err := product.Policy(name)
		if err != nil {
			return nil, err
		}
		policies[name] = policy
	}
	return policies, nil
}

// Address returns the ops server address string.
func (c *OpsConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultProducts returns the built-in product policies used when the
// configuration defines none.
func DefaultProducts() map[string]ProductConfig {
	return map[string]ProductConfig{
		"wofs_albers": {
			TimeMode:         "dataset",
			SrcTemplate:      "LS_WATER_3577_{x}_{y}_{time}_v{}.nc",
			DestTemplate:     "LS_WATER_3577_{x}_{y}_{time}",
			Bucket:           "s3://dea-public-data-dev",
			AWSDir:           "WOfS/WOFLs/v2.1.0/combined",
			ResamplingMethod: "mode",
		},
		"wofs_filtered_summary": {
			TimeMode:         "notime",
			SrcTemplate:      "wofs_filtered_summary_{x}_{y}.nc",
			DestTemplate:     "wofs_filtered_summary_{x}_{y}",
			Bucket:           "s3://dea-public-data-dev",
			AWSDir:           "WOfS/filtered_summary/v2.1.0/combined",
			ResamplingMethod: "mode",
		},
		"ls5_fc_albers": {
			TimeMode:         "dataset",
			SrcTemplate:      "LS5_TM_FC_3577_{x}_{y}_{time}_v{}.nc",
			DestTemplate:     "LS5_TM_FC_3577_{x}_{y}_{time}",
			Bucket:           "s3://dea-public-data-dev",
			AWSDir:           "fractional-cover/fc/v2.2.0/ls5",
			ResamplingMethod: "average",
		},
		"ls7_fc_albers": {
			TimeMode:         "dataset",
			SrcTemplate:      "LS7_ETM_FC_3577_{x}_{y}_{time}_v{}.nc",
			DestTemplate:     "LS7_ETM_FC_3577_{x}_{y}_{time}",
			Bucket:           "s3://dea-public-data-dev",
			AWSDir:           "fractional-cover/fc/v2.2.0/ls7",
			ResamplingMethod: "average",
		},
		"ls8_fc_albers": {
			TimeMode:         "dataset",
			SrcTemplate:      "LS8_OLI_FC_3577_{x}_{y}_{time}_v{}.nc",
			DestTemplate:     "LS8_OLI_FC_3577_{x}_{y}_{time}",
			Bucket:           "s3://dea-public-data-dev",
			AWSDir:           "fractional-cover/fc/v2.2.0/ls8",
			ResamplingMethod: "average",
		},
	}
}
