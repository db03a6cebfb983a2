// Package alloc hands out and reclaims the blocks of a mounted volume. The
// link field at the front of every block is the only record of which blocks
// are in use: a block whose link is `types.LinkFree` is free.
package alloc

import (
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

type Allocator interface {
	// Alloc claims the lowest-indexed free data block, marks it as the
	// terminator of a new chain and zeroes its payload. It returns
	// `types.ErrDiskFull` when no block is free.
	Alloc() (types.Block, error)

	// Free releases every block of the chain starting at `head`.
	Free(head types.Block) error

	// Next returns the link field of block `b`.
	Next(b types.Block) (types.Link, error)

	// SetNext rewrites the link field of block `b`, preserving its payload.
	SetNext(b types.Block, link types.Link) error

	// FreeCount returns the number of free data blocks.
	FreeCount() (types.Block, error)
}

// New builds an allocator over the data blocks of `dev`, which start at
// `first`.
type New func(dev device.Device, first types.Block) (Allocator, error)

var (
	_ Allocator = (*LinkAllocator)(nil)
	_ Allocator = (*IndexedAllocator)(nil)

	_ New = NewLinkAllocator
	_ New = NewIndexedAllocator
)
