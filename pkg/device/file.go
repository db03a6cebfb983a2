package device

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/weberc2/sanicfs/pkg/types"
)

// File is a device backed by one host file per image, stored under `Dir`.
type File struct {
	Dir      string
	geometry Geometry
	file     *os.File
}

func NewFile(dir string, geometry Geometry) *File {
	return &File{Dir: dir, geometry: geometry}
}

func (f *File) Geometry() Geometry { return f.geometry }

func (f *File) path(name string) string { return filepath.Join(f.Dir, name) }

func (f *File) Create(name string) error {
	if err := f.geometry.Validate(); err != nil {
		return types.NewDeviceErr("create", err)
	}
	if f.file != nil {
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("image `%s` is still open", f.file.Name()),
		)
	}
	file, err := os.OpenFile(
		f.path(name),
		os.O_RDWR|os.O_CREATE|os.O_TRUNC,
		0644,
	)
	if err != nil {
		return types.NewDeviceErr("create", err)
	}
	if err := file.Truncate(int64(f.geometry.Size())); err != nil {
		file.Close()
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("sizing `%s`: %w", file.Name(), err),
		)
	}
	f.file = file
	return nil
}

func (f *File) Open(name string) error {
	if f.file != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("image `%s` is still open", f.file.Name()),
		)
	}
	file, err := os.OpenFile(f.path(name), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%v: %w", err, types.ErrVolumeNotFound)
		}
		return types.NewDeviceErr("open", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return types.NewDeviceErr("open", err)
	}
	if types.Byte(info.Size()) != f.geometry.Size() {
		file.Close()
		return types.NewDeviceErr(
			"open",
			fmt.Errorf(
				"image `%s` is `%d` bytes; wanted `%d`: %w",
				file.Name(),
				info.Size(),
				f.geometry.Size(),
				types.ErrInvalidGeometry,
			),
		)
	}
	f.file = file
	return nil
}

func (f *File) Close() error {
	if f.file == nil {
		return types.NewDeviceErr("close", errNotOpen)
	}
	file := f.file
	f.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return types.NewDeviceErr("close", err)
	}
	if err := file.Close(); err != nil {
		return types.NewDeviceErr("close", err)
	}
	return nil
}

func (f *File) ReadBlock(index types.Block, p []byte) error {
	if f.file == nil {
		return &types.DeviceErr{Op: "read", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(f.geometry, "read", index, p); err != nil {
		return err
	}
	if _, err := f.file.ReadAt(p, int64(f.geometry.Offset(index))); err != nil {
		return &types.DeviceErr{Op: "read", Block: index, Err: err}
	}
	return nil
}

func (f *File) WriteBlock(index types.Block, p []byte) error {
	if f.file == nil {
		return &types.DeviceErr{Op: "write", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(f.geometry, "write", index, p); err != nil {
		return err
	}
	if _, err := f.file.WriteAt(p, int64(f.geometry.Offset(index))); err != nil {
		return &types.DeviceErr{Op: "write", Block: index, Err: err}
	}
	return nil
}
