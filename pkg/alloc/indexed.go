package alloc

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

// IndexedAllocator keeps the set of free blocks in a roaring bitmap built by
// one scan at mount, so allocation does not rescan the device. Link fields
// are still written exactly as `LinkAllocator` writes them; the bitmap is
// only an index over them.
type IndexedAllocator struct {
	Device device.Device
	First  types.Block

	free *roaring.Bitmap
}

func NewIndexedAllocator(
	dev device.Device,
	first types.Block,
) (Allocator, error) {
	if err := checkFirst(dev, first); err != nil {
		return nil, err
	}
	free := roaring.New()
	if err := scanFree(dev, first, func(b types.Block) {
		free.Add(uint32(b))
	}); err != nil {
		return nil, fmt.Errorf("indexing free blocks: %w", err)
	}
	return &IndexedAllocator{Device: dev, First: first, free: free}, nil
}

func (ia *IndexedAllocator) Alloc() (types.Block, error) {
	if ia.free.IsEmpty() {
		return types.BlockNil, fmt.Errorf(
			"allocating block: %w",
			types.ErrDiskFull,
		)
	}
	b := types.Block(ia.free.Minimum())
	if err := claim(ia.Device, b); err != nil {
		return types.BlockNil, err
	}
	ia.free.Remove(uint32(b))
	return b, nil
}

func (ia *IndexedAllocator) Free(head types.Block) error {
	return freeChain(ia.Device, ia.First, head, func(b types.Block) {
		ia.free.Add(uint32(b))
	})
}

func (ia *IndexedAllocator) Next(b types.Block) (types.Link, error) {
	return next(ia.Device, b)
}

func (ia *IndexedAllocator) SetNext(b types.Block, link types.Link) error {
	if err := setNext(ia.Device, ia.First, b, link); err != nil {
		return err
	}
	if b >= ia.First {
		if link.Free() {
			ia.free.Add(uint32(b))
		} else {
			ia.free.Remove(uint32(b))
		}
	}
	return nil
}

func (ia *IndexedAllocator) FreeCount() (types.Block, error) {
	return types.Block(ia.free.GetCardinality()), nil
}
