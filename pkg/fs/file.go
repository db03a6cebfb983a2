package fs

import (
	"fmt"
	"io"

	"github.com/weberc2/sanicfs/pkg/types"
)

// File adapts a descriptor to the `io` interfaces.
type File struct {
	fs   *FileSystem
	fd   int
	name string
}

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// OpenFile opens `name` and wraps the new descriptor.
func (fs *FileSystem) OpenFile(name string) (*File, error) {
	fd, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &File{fs: fs, fd: fd, name: name}, nil
}

func (f *File) Name() string { return f.name }

func (f *File) FD() int { return f.fd }

// Read returns `io.EOF` once the offset reaches the end of the file.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.fs.Read(f.fd, p)
	if err != nil {
		return n, err
	}
	if n < 1 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write reports a short write on a full disk as `types.ErrDiskFull`.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.fs.Write(f.fd, p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, fmt.Errorf(
			"writing `%s`: wrote `%d` of `%d` bytes: %w",
			f.name,
			n,
			len(p),
			types.ErrDiskFull,
		)
	}
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	var base types.Byte
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		current, err := f.fs.Offset(f.fd)
		if err != nil {
			return 0, err
		}
		base = current
	case io.SeekEnd:
		size, err := f.fs.Size(f.fd)
		if err != nil {
			return 0, err
		}
		base = size
	default:
		return 0, fmt.Errorf(
			"seeking `%s`: invalid whence `%d`: %w",
			f.name,
			whence,
			types.ErrOutOfBounds,
		)
	}
	target := base + types.Byte(offset)
	if err := f.fs.Seek(f.fd, target); err != nil {
		return 0, err
	}
	return int64(target), nil
}

func (f *File) Size() (types.Byte, error) { return f.fs.Size(f.fd) }

func (f *File) Truncate(length types.Byte) error {
	return f.fs.Truncate(f.fd, length)
}

func (f *File) Close() error { return f.fs.Close(f.fd) }
