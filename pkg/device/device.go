// Package device provides the block devices a volume lives on. Every
// device exposes a fixed number of fixed-size blocks addressed by index and
// transfers whole blocks at a time.
package device

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/types"
)

type Device interface {
	// Create makes a fresh zeroed image called `name` and leaves it open.
	Create(name string) error

	// Open opens an existing image.
	Open(name string) error

	// Close flushes (where the backend needs it) and closes the open image.
	Close() error

	// ReadBlock fills `p`, which must be exactly one block long.
	ReadBlock(index types.Block, p []byte) error

	// WriteBlock writes `p`, which must be exactly one block long.
	WriteBlock(index types.Block, p []byte) error

	Geometry() Geometry
}

const (
	DefaultBlockSize types.Byte  = 4096
	DefaultBlocks    types.Block = 8192

	// MinBlockSize leaves room for the link field and one payload byte.
	MinBlockSize types.Byte = types.LinkSize + 1
)

// Geometry describes the shape of a device.
type Geometry struct {
	BlockSize types.Byte  `json:"blockSize" yaml:"blockSize"`
	Blocks    types.Block `json:"blocks" yaml:"blocks"`
}

func DefaultGeometry() Geometry {
	return Geometry{BlockSize: DefaultBlockSize, Blocks: DefaultBlocks}
}

// Payload is the number of data bytes a block carries after its link
// field.
func (g Geometry) Payload() types.Byte { return g.BlockSize - types.LinkSize }

// Size is the total number of bytes on the device.
func (g Geometry) Size() types.Byte { return g.BlockSize * types.Byte(g.Blocks) }

// Offset is the byte offset of block `index` on the device.
func (g Geometry) Offset(index types.Block) types.Byte {
	return types.Byte(index) * g.BlockSize
}

func (g Geometry) Validate() error {
	if g.BlockSize < MinBlockSize || g.BlockSize > 1<<16 {
		return fmt.Errorf(
			"validating geometry: block size `%d` not in [%d, %d]: %w",
			g.BlockSize,
			MinBlockSize,
			1<<16,
			types.ErrInvalidGeometry,
		)
	}
	if g.Blocks < 2 || g.Blocks > types.BlockMax+1 {
		return fmt.Errorf(
			"validating geometry: block count `%d` not in [2, %d]: %w",
			g.Blocks,
			types.BlockMax+1,
			types.ErrInvalidGeometry,
		)
	}
	return nil
}

// checkTransfer validates the arguments common to every block read and
// write.
func checkTransfer(g Geometry, op string, index types.Block, p []byte) error {
	if index < 0 || index >= g.Blocks {
		return &types.DeviceErr{
			Op:    op,
			Block: index,
			Err: fmt.Errorf(
				"index out of range [0, %d)",
				g.Blocks,
			),
		}
	}
	if types.Byte(len(p)) != g.BlockSize {
		return &types.DeviceErr{
			Op:    op,
			Block: index,
			Err: fmt.Errorf(
				"buffer length `%d` does not match block size `%d`",
				len(p),
				g.BlockSize,
			),
		}
	}
	return nil
}

const errNotOpen types.ConstError = "no image open"
