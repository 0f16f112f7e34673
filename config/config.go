// Package config loads sectorfs settings.
//
// Sources, highest precedence first:
//  1. Environment variables (SECTORFS_*, e.g. SECTORFS_DISK_SECTORS=2048)
//  2. Configuration file (YAML)
//  3. Default values
//
// The disk geometry and directory capacity must stay the same between the run
// that formatted a device and every later run.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/disk"
)

type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Disk    DiskConfig    `mapstructure:"disk" yaml:"disk"`
	FS      FSConfig      `mapstructure:"fs" yaml:"fs"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type LoggingConfig struct {
	// Level is the minimum slog level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`

	// Trace is the highest util.DPrintf level emitted at DEBUG.
	Trace uint64 `mapstructure:"trace" yaml:"trace" validate:"lte=20"`
}

type DiskConfig struct {
	// Type selects the device: memory, file or badger.
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory file badger"`

	// Path is the image file (file) or database directory (badger).
	Path string `mapstructure:"path" yaml:"path"`

	Sectors    uint64 `mapstructure:"sectors" yaml:"sectors" validate:"gte=2"`
	SectorSize uint64 `mapstructure:"sector_size" yaml:"sector_size" validate:"gte=32,lte=65536"`
}

type FSConfig struct {
	DirEntries   uint64 `mapstructure:"dir_entries" yaml:"dir_entries" validate:"gte=1"`
	MaxOpenFiles uint64 `mapstructure:"max_open_files" yaml:"max_open_files" validate:"gte=1"`
}

type MetricsConfig struct {
	// Enabled records operation metrics in a Prometheus registry.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Trace: 1},
		Disk: DiskConfig{
			Type:       "file",
			Path:       "sectorfs.img",
			Sectors:    common.NumSectors,
			SectorSize: common.SectorSize,
		},
		FS: FSConfig{
			DirEntries:   common.NumDirEntries,
			MaxOpenFiles: common.MaxOpenFiles,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.trace", d.Logging.Trace)
	v.SetDefault("disk.type", d.Disk.Type)
	v.SetDefault("disk.path", d.Disk.Path)
	v.SetDefault("disk.sectors", d.Disk.Sectors)
	v.SetDefault("disk.sector_size", d.Disk.SectorSize)
	v.SetDefault("fs.dir_entries", d.FS.DirEntries)
	v.SetDefault("fs.max_open_files", d.FS.MaxOpenFiles)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Load reads configPath (if not empty), the environment and the defaults, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SECTORFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// WriteSample writes the default configuration as YAML.
func WriteSample(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return err
	}
	return enc.Close()
}

// OpenDisk opens the configured device.
func (c *Config) OpenDisk() (disk.Disk, error) {
	switch c.Disk.Type {
	case "memory":
		return disk.NewMemDisk(c.Disk.Sectors, c.Disk.SectorSize), nil
	case "file":
		return disk.NewFileDisk(c.Disk.Path, c.Disk.Sectors, c.Disk.SectorSize)
	case "badger":
		return disk.NewBadgerDisk(c.Disk.Path, c.Disk.Sectors, c.Disk.SectorSize)
	}
	return nil, fmt.Errorf("unknown disk type %q", c.Disk.Type)
}
