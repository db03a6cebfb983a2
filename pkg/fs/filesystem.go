// Package fs is the file system session: it mounts a volume from a block
// device and drives the directory, the descriptor table and the allocator to
// serve file operations.
package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/descriptor"
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/directory"
	"github.com/weberc2/sanicfs/pkg/types"
)

// FileSystem is one session over one device. It is not safe for concurrent
// use.
type FileSystem struct {
	Device       device.Device
	NewAllocator alloc.New
	Logger       logrus.FieldLogger

	mounted     bool
	volume      string
	superblock  directory.Superblock
	allocator   alloc.Allocator
	descriptors descriptor.Table
}

type Params struct {
	Device device.Device

	// NewAllocator defaults to `alloc.NewLinkAllocator`.
	NewAllocator alloc.New

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

func New(params *Params) *FileSystem {
	fs := FileSystem{
		Device:       params.Device,
		NewAllocator: params.NewAllocator,
		Logger:       params.Logger,
		descriptors:  descriptor.NewTable(),
	}
	if fs.NewAllocator == nil {
		fs.NewAllocator = alloc.NewLinkAllocator
	}
	if fs.Logger == nil {
		fs.Logger = logrus.StandardLogger()
	}
	return &fs
}

// Volume returns the name of the mounted volume and whether one is mounted.
func (fs *FileSystem) Volume() (string, bool) { return fs.volume, fs.mounted }

// Capacity returns the largest file the mounted volume can hold: every
// block outside the superblock, payload bytes only.
func (fs *FileSystem) Capacity() (types.Byte, error) {
	if err := fs.checkMounted("getting capacity"); err != nil {
		return 0, err
	}
	g := fs.superblock.Geometry
	data := g.Blocks - directory.ReservedBlocks(g)
	return types.Byte(data) * g.Payload(), nil
}

func (fs *FileSystem) payload() types.Byte {
	return fs.superblock.Geometry.Payload()
}

func (fs *FileSystem) log() logrus.FieldLogger {
	return fs.Logger.WithField("volume", fs.volume)
}

// Make creates a new, empty volume on the device. The device is left
// closed.
func (fs *FileSystem) Make(volume string) error {
	if fs.mounted {
		return fmt.Errorf(
			"making volume `%s`: volume `%s` is mounted: %w",
			volume,
			fs.volume,
			types.ErrAlreadyMounted,
		)
	}
	if err := fs.Device.Create(volume); err != nil {
		return fmt.Errorf("making volume `%s`: %w", volume, err)
	}
	sb := directory.New(fs.Device.Geometry())
	if err := directory.Store(fs.Device, &sb); err != nil {
		fs.Device.Close()
		return fmt.Errorf("making volume `%s`: %w", volume, err)
	}
	if err := fs.Device.Close(); err != nil {
		return fmt.Errorf("making volume `%s`: %w", volume, err)
	}
	fs.Logger.WithField("volume", volume).
		WithField("uuid", sb.UUID.String()).
		Debug("made volume")
	return nil
}

// Mount opens `volume` and loads its directory. The descriptor table starts
// empty.
func (fs *FileSystem) Mount(volume string) error {
	if fs.mounted {
		return fmt.Errorf(
			"mounting volume `%s`: volume `%s` is mounted: %w",
			volume,
			fs.volume,
			types.ErrAlreadyMounted,
		)
	}
	if err := fs.Device.Open(volume); err != nil {
		return fmt.Errorf("mounting volume `%s`: %w", volume, err)
	}
	sb, err := directory.Load(fs.Device)
	if err != nil {
		fs.Device.Close()
		return fmt.Errorf("mounting volume `%s`: %w", volume, err)
	}
	allocator, err := fs.NewAllocator(
		fs.Device,
		directory.ReservedBlocks(sb.Geometry),
	)
	if err != nil {
		fs.Device.Close()
		return fmt.Errorf("mounting volume `%s`: %w", volume, err)
	}

	fs.mounted = true
	fs.volume = volume
	fs.superblock = sb
	fs.allocator = allocator
	fs.descriptors.Reset()
	fs.log().WithField("uuid", sb.UUID.String()).Debug("mounted volume")
	return nil
}

// Unmount persists the directory and closes the device. It is refused while
// descriptors are open; the volume then stays mounted.
func (fs *FileSystem) Unmount(volume string) error {
	if !fs.mounted || fs.volume != volume {
		return fmt.Errorf("unmounting volume `%s`: %w", volume, types.ErrNotMounted)
	}
	if open := fs.descriptors.Count(); open > 0 {
		fs.log().WithField("descriptors", fs.descriptors.Debug()).
			Warn("unmount refused")
		return fmt.Errorf(
			"unmounting volume `%s`: `%d` descriptors open: %w",
			volume,
			open,
			types.ErrDescriptorsStillOpen,
		)
	}
	if err := directory.Store(fs.Device, &fs.superblock); err != nil {
		return fmt.Errorf("unmounting volume `%s`: %w", volume, err)
	}

	fs.log().Debug("unmounting volume")
	fs.mounted = false
	fs.volume = ""
	fs.superblock = directory.Superblock{}
	fs.allocator = nil
	fs.descriptors.Reset()
	if err := fs.Device.Close(); err != nil {
		return fmt.Errorf("unmounting volume `%s`: %w", volume, err)
	}
	return nil
}

func (fs *FileSystem) checkMounted(op string) error {
	if !fs.mounted {
		return fmt.Errorf("%s: %w", op, types.ErrNotMounted)
	}
	return nil
}
