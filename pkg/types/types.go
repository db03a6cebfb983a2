package types

import "strconv"

// Byte is a length or an offset in bytes.
type Byte int64

// Block is the index of a block on a device.
type Block int32

// Link is the value stored in the link field at the start of every block.
// Positive values point at the next block in a chain.
type Link int16

const (
	LinkFree       Link = 0
	LinkTerminator Link = -2

	// LinkSize is the number of bytes the link field occupies at the front
	// of every block.
	LinkSize Byte = 2

	BlockSuperblock Block = 0
	BlockNil        Block = 0

	// BlockMax is the largest block index a link field can address.
	BlockMax Block = 1<<15 - 1

	MaxFiles       = 64
	MaxDescriptors = 32

	// MaxFileName is the on-disk width of a file name, including the
	// trailing NUL.
	MaxFileName = 16
)

func (l Link) Free() bool { return l == LinkFree }

func (l Link) Terminal() bool { return l == LinkTerminator }

// Block returns the block a link points at. Only meaningful when the link
// is neither free nor terminal.
func (l Link) Block() Block { return Block(l) }

func (l Link) String() string {
	switch l {
	case LinkFree:
		return "free"
	case LinkTerminator:
		return "terminator"
	default:
		return strconv.Itoa(int(l))
	}
}
