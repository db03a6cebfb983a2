package types

import "fmt"

type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	ErrDevice               ConstError = "device error"
	ErrNotFound             ConstError = "file not found"
	ErrAlreadyExists        ConstError = "file already exists"
	ErrNameTooLong          ConstError = "file name too long"
	ErrInvalidName          ConstError = "invalid file name"
	ErrDirectoryFull        ConstError = "directory is at file capacity"
	ErrDiskFull             ConstError = "disk is at block capacity"
	ErrInvalidDescriptor    ConstError = "invalid file descriptor"
	ErrTooManyOpen          ConstError = "too many open file descriptors"
	ErrOutOfBounds          ConstError = "offset out of bounds"
	ErrFileOpen             ConstError = "file has open descriptors"
	ErrDescriptorsStillOpen ConstError = "there are still open file descriptors"
	ErrNotMounted           ConstError = "volume not mounted"
	ErrAlreadyMounted       ConstError = "volume already mounted"
	ErrInvalidFileSystem    ConstError = "device does not contain a valid file system"
	ErrInvalidGeometry      ConstError = "invalid device geometry"
	ErrCorruptChain         ConstError = "corrupt block chain"
	ErrVolumeNotFound       ConstError = "volume not found"
)

// DeviceErr reports a failed block device operation. It matches `ErrDevice`
// under `errors.Is` in addition to whatever it wraps.
type DeviceErr struct {
	Op    string
	Block Block
	Err   error
}

func (err *DeviceErr) Error() string {
	if err.Block < 0 {
		return fmt.Sprintf("device: %s: %v", err.Op, err.Err)
	}
	return fmt.Sprintf(
		"device: %s block `%d`: %v",
		err.Op,
		err.Block,
		err.Err,
	)
}

func (err *DeviceErr) Unwrap() error { return err.Err }

func (err *DeviceErr) Is(target error) bool { return target == ErrDevice }

// NewDeviceErr builds a `DeviceErr` for an operation that does not address
// a particular block.
func NewDeviceErr(op string, err error) *DeviceErr {
	return &DeviceErr{Op: op, Block: -1, Err: err}
}

type ObjectNotFoundErr struct {
	Bucket string
	Key    string
}

func (err *ObjectNotFoundErr) Error() string {
	return fmt.Sprintf(
		"object not found (bucket=%s) (key=%s)",
		err.Bucket,
		err.Key,
	)
}

// Is lets a missing object stand in for a missing volume.
func (err *ObjectNotFoundErr) Is(target error) bool {
	return target == ErrVolumeNotFound
}
