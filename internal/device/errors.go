package device

import "errors"

var (
	ErrDeviceNotFound = errors.New("device: not found")
	ErrHandleNotFound = errors.New("device: handle not found")
	ErrNotReadable    = errors.New("device: handle not open for reading")
	ErrNotWritable    = errors.New("device: handle not open for writing")
	ErrBadMode        = errors.New("device: bad open mode")
)
