package alloc

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

// LinkAllocator finds free blocks by scanning link fields. It keeps no state
// of its own, so it never disagrees with the device.
type LinkAllocator struct {
	Device device.Device
	First  types.Block
}

func NewLinkAllocator(dev device.Device, first types.Block) (Allocator, error) {
	if err := checkFirst(dev, first); err != nil {
		return nil, err
	}
	return &LinkAllocator{Device: dev, First: first}, nil
}

func checkFirst(dev device.Device, first types.Block) error {
	if first < 1 || first > dev.Geometry().Blocks {
		return fmt.Errorf(
			"first data block `%d` not in [1, %d]: %w",
			first,
			dev.Geometry().Blocks,
			types.ErrInvalidGeometry,
		)
	}
	return nil
}

func (la *LinkAllocator) Alloc() (types.Block, error) {
	for b := la.First; b < la.Device.Geometry().Blocks; b++ {
		link, err := readLink(la.Device, b)
		if err != nil {
			return types.BlockNil, fmt.Errorf("allocating block: %w", err)
		}
		if link.Free() {
			if err := claim(la.Device, b); err != nil {
				return types.BlockNil, err
			}
			return b, nil
		}
	}
	return types.BlockNil, fmt.Errorf("allocating block: %w", types.ErrDiskFull)
}

func (la *LinkAllocator) Free(head types.Block) error {
	return freeChain(la.Device, la.First, head, nil)
}

func (la *LinkAllocator) Next(b types.Block) (types.Link, error) {
	return next(la.Device, b)
}

func (la *LinkAllocator) SetNext(b types.Block, link types.Link) error {
	return setNext(la.Device, la.First, b, link)
}

func (la *LinkAllocator) FreeCount() (types.Block, error) {
	var count types.Block
	err := scanFree(la.Device, la.First, func(types.Block) { count++ })
	return count, err
}

// claim turns block `b` into a one-block chain with an empty payload.
func claim(dev device.Device, b types.Block) error {
	if err := WriteBlock(dev, b, types.LinkTerminator, nil); err != nil {
		return fmt.Errorf("allocating block `%d`: %w", b, err)
	}
	return nil
}

func scanFree(dev device.Device, first types.Block, f func(types.Block)) error {
	for b := first; b < dev.Geometry().Blocks; b++ {
		link, err := readLink(dev, b)
		if err != nil {
			return fmt.Errorf("counting free blocks: %w", err)
		}
		if link.Free() {
			f(b)
		}
	}
	return nil
}

// freeChain walks the chain at `head`, reading each block's link before
// marking it free. It visits at most one block per block on the device,
// stops early at a block that is already free, and refuses to touch
// reserved or out-of-range blocks. `freed` is called for every block it
// releases.
func freeChain(
	dev device.Device,
	first types.Block,
	head types.Block,
	freed func(types.Block),
) error {
	if head <= types.BlockNil {
		return nil
	}
	blocks := dev.Geometry().Blocks
	current := head
	for i := types.Block(0); ; i++ {
		if i >= blocks {
			return fmt.Errorf(
				"freeing chain at `%d`: chain is longer than the device: %w",
				head,
				types.ErrCorruptChain,
			)
		}
		if current < first || current >= blocks {
			return fmt.Errorf(
				"freeing chain at `%d`: block `%d` not in [%d, %d): %w",
				head,
				current,
				first,
				blocks,
				types.ErrCorruptChain,
			)
		}
		link, err := readLink(dev, current)
		if err != nil {
			return fmt.Errorf("freeing chain at `%d`: %w", head, err)
		}
		if link.Free() {
			return nil
		}
		if err := writeLink(dev, current, types.LinkFree); err != nil {
			return fmt.Errorf("freeing chain at `%d`: %w", head, err)
		}
		if freed != nil {
			freed(current)
		}
		if link.Terminal() {
			return nil
		}
		if link < 0 {
			return fmt.Errorf(
				"freeing chain at `%d`: block `%d` has invalid link `%s`: %w",
				head,
				current,
				link,
				types.ErrCorruptChain,
			)
		}
		current = link.Block()
	}
}

func next(dev device.Device, b types.Block) (types.Link, error) {
	link, err := readLink(dev, b)
	if err != nil {
		return types.LinkFree, fmt.Errorf("reading link of block `%d`: %w", b, err)
	}
	return link, nil
}

func setNext(
	dev device.Device,
	first types.Block,
	b types.Block,
	link types.Link,
) error {
	if !link.Free() && !link.Terminal() {
		if target := link.Block(); target < first ||
			target >= dev.Geometry().Blocks {
			return fmt.Errorf(
				"linking block `%d` to `%d`: target not in [%d, %d): %w",
				b,
				target,
				first,
				dev.Geometry().Blocks,
				types.ErrCorruptChain,
			)
		}
	}
	if err := writeLink(dev, b, link); err != nil {
		return fmt.Errorf("linking block `%d` to `%s`: %w", b, link, err)
	}
	return nil
}
