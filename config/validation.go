package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mit-pdos/go-sectorfs/common"
	"github.com/mit-pdos/go-sectorfs/directory"
	"github.com/mit-pdos/go-sectorfs/filehdr"
)

var validate = validator.New()

// Validate checks struct tags, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Disk.Type != "memory" && cfg.Disk.Path == "" {
		return fmt.Errorf("disk.path: required for disk type %q", cfg.Disk.Type)
	}
	// The bitmap and every directory are single files with direct-only headers.
	limit := filehdr.MaxFileSize(cfg.Disk.SectorSize)
	if n := common.FreeMapFileSize(cfg.Disk.Sectors); n > limit {
		return fmt.Errorf("disk.sectors: %d sectors need a %d-byte bitmap, over the %d-byte file limit for sector_size %d",
			cfg.Disk.Sectors, n, limit, cfg.Disk.SectorSize)
	}
	if n := directory.FileSize(cfg.FS.DirEntries); n > limit {
		return fmt.Errorf("fs.dir_entries: %d entries need %d bytes, over the %d-byte file limit for sector_size %d",
			cfg.FS.DirEntries, n, limit, cfg.Disk.SectorSize)
	}
	return nil
}

// formatValidationError reports the first failed tag.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
