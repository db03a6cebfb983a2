package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weberc2/sanicfs/pkg/descriptor"
	"github.com/weberc2/sanicfs/pkg/directory"
	"github.com/weberc2/sanicfs/pkg/types"
)

// Create makes an empty file called `name`.
func (fs *FileSystem) Create(name string) error {
	if err := fs.checkMounted("creating file"); err != nil {
		return err
	}
	i, err := fs.superblock.Table.Create(fs.allocator, name)
	if err != nil {
		return err
	}
	fs.log().WithFields(logrus.Fields{
		"file":  name,
		"entry": i,
		"start": fs.superblock.Table[i].Start,
	}).Debug("created file")
	return nil
}

// Delete removes `name` and releases its blocks. Files with open
// descriptors cannot be deleted.
func (fs *FileSystem) Delete(name string) error {
	if err := fs.checkMounted("deleting file"); err != nil {
		return err
	}
	if err := fs.superblock.Table.Delete(
		fs.allocator,
		name,
		&fs.descriptors,
	); err != nil {
		return err
	}
	fs.log().WithField("file", name).Debug("deleted file")
	return nil
}

// Open returns a new descriptor on `name` positioned at offset 0.
func (fs *FileSystem) Open(name string) (int, error) {
	if err := fs.checkMounted("opening file"); err != nil {
		return -1, err
	}
	i, err := fs.superblock.Table.Find(name)
	if err != nil {
		return -1, fmt.Errorf("opening file: %w", err)
	}
	fd, err := fs.descriptors.Open(i)
	if err != nil {
		return -1, fmt.Errorf("opening file `%s`: %w", name, err)
	}
	fs.log().WithField("file", name).WithField("fd", fd).Debug("opened file")
	return fd, nil
}

func (fs *FileSystem) Close(fd int) error {
	if err := fs.checkMounted("closing descriptor"); err != nil {
		return err
	}
	if err := fs.descriptors.Close(fd); err != nil {
		return err
	}
	fs.log().WithField("fd", fd).Debug("closed descriptor")
	return nil
}

// Files lists the volume's files in directory order.
func (fs *FileSystem) Files() ([]directory.Entry, error) {
	if err := fs.checkMounted("listing files"); err != nil {
		return nil, err
	}
	return fs.superblock.Table.Files(), nil
}

// OpenDescriptor describes one open descriptor.
type OpenDescriptor struct {
	FD     int        `json:"fd"`
	Name   string     `json:"name"`
	Offset types.Byte `json:"offset"`
	Size   types.Byte `json:"size"`
}

// Descriptors lists the open descriptors in fd order.
func (fs *FileSystem) Descriptors() ([]OpenDescriptor, error) {
	if err := fs.checkMounted("listing descriptors"); err != nil {
		return nil, err
	}
	var open []OpenDescriptor
	for fd := range fs.descriptors {
		d := &fs.descriptors[fd]
		if !d.Used() {
			continue
		}
		e := &fs.superblock.Table[d.Entry]
		open = append(open, OpenDescriptor{
			FD:     fd,
			Name:   e.Name,
			Offset: d.Offset,
			Size:   e.Size,
		})
	}
	return open, nil
}

// descriptor resolves `fd` to its descriptor and directory entry.
func (fs *FileSystem) descriptor(
	op string,
	fd int,
) (*descriptor.Descriptor, *directory.Entry, error) {
	if err := fs.checkMounted(op); err != nil {
		return nil, nil, err
	}
	d, err := fs.descriptors.Get(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, &fs.superblock.Table[d.Entry], nil
}
