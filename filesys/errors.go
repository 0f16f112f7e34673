package filesys

import "errors"

var (
	ErrNameCollision            = errors.New("name already exists")
	ErrNoFreeHeaderSector       = errors.New("no free sector for file header")
	ErrDirectoryFull            = errors.New("directory full")
	ErrInsufficientDataSpace    = errors.New("insufficient space for file data")
	ErrPathNotFound             = errors.New("intermediate directory not found")
	ErrNotFound                 = errors.New("file not found")
	ErrWrongType                = errors.New("wrong file type")
	ErrDescriptorTableExhausted = errors.New("descriptor table exhausted")
	ErrInvalidDescriptor        = errors.New("invalid descriptor")
	ErrInvalidName              = errors.New("invalid name")
	ErrInvalidOffset            = errors.New("invalid offset")
	ErrDeviceTooSmall           = errors.New("device too small for file system layout")
	ErrDeviceTooLarge           = errors.New("bitmap exceeds the largest file a header can describe")
	ErrClosed                   = errors.New("file system closed")
)
