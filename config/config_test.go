package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mit-pdos/go-sectorfs/common"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, common.SectorSize, cfg.Disk.SectorSize)
	assert.Equal(t, common.NumDirEntries, cfg.FS.DirEntries)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  trace: 10
disk:
  type: badger
  path: /tmp/sectorfs-db
  sectors: 2048
  sector_size: 256
fs:
  dir_entries: 20
metrics:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, uint64(10), cfg.Logging.Trace)
	assert.Equal(t, "badger", cfg.Disk.Type)
	assert.Equal(t, "/tmp/sectorfs-db", cfg.Disk.Path)
	assert.Equal(t, uint64(2048), cfg.Disk.Sectors)
	assert.Equal(t, uint64(256), cfg.Disk.SectorSize)
	assert.Equal(t, uint64(20), cfg.FS.DirEntries)
	// unset keys keep their defaults
	assert.Equal(t, common.MaxOpenFiles, cfg.FS.MaxOpenFiles)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SECTORFS_DISK_TYPE", "memory")
	t.Setenv("SECTORFS_DISK_SECTORS", "64")
	t.Setenv("SECTORFS_FS_MAX_OPEN_FILES", "3")

	path := writeConfig(t, "disk:\n  sectors: 4096\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Disk.Type)
	assert.Equal(t, uint64(64), cfg.Disk.Sectors, "environment overrides the file")
	assert.Equal(t, uint64(3), cfg.FS.MaxOpenFiles)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"default", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "LOUD" }, "Level"},
		{"bad disk type", func(c *Config) { c.Disk.Type = "tape" }, "Type"},
		{"one sector", func(c *Config) { c.Disk.Sectors = 1 }, "Sectors"},
		{"tiny sectors", func(c *Config) { c.Disk.SectorSize = 16 }, "SectorSize"},
		{"no dir entries", func(c *Config) { c.FS.DirEntries = 0 }, "DirEntries"},
		{"no descriptors", func(c *Config) { c.FS.MaxOpenFiles = 0 }, "MaxOpenFiles"},
		{"file without path", func(c *Config) { c.Disk.Path = "" }, "disk.path"},
		// 32-byte sectors: two data sectors per header, 64 bytes per file
		{"bitmap over file limit", func(c *Config) { c.Disk.SectorSize = 32 }, "disk.sectors"},
		{"bitmap at file limit", func(c *Config) {
			c.Disk.SectorSize = 32
			c.Disk.Sectors = 512
			c.FS.DirEntries = 2
		}, ""},
		{"directory over file limit", func(c *Config) { c.FS.DirEntries = 100 }, "fs.dir_entries"},
		{"memory without path", func(c *Config) {
			c.Disk.Type = "memory"
			c.Disk.Path = ""
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWriteSample(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSample(&buf))
	assert.Contains(t, buf.String(), "sector_size: 128")

	var cfg Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &cfg))
	assert.Equal(t, *Default(), cfg)

	// the sample loads back to the defaults
	path := writeConfig(t, buf.String())
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}

func TestOpenDisk(t *testing.T) {
	cfg := Default()
	cfg.Disk.Type = "memory"
	cfg.Disk.Sectors = 16
	d, err := cfg.OpenDisk()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), d.Size())
	assert.Equal(t, common.SectorSize, d.SectorSize())
	require.NoError(t, d.Close())

	cfg.Disk.Type = "file"
	cfg.Disk.Path = filepath.Join(t.TempDir(), "disk.img")
	d, err = cfg.OpenDisk()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), d.Size())
	require.NoError(t, d.Close())

	cfg.Disk.Type = "tape"
	_, err = cfg.OpenDisk()
	assert.Error(t, err)
}
