package directory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/math"
	"github.com/weberc2/sanicfs/pkg/types"
)

const (
	// Magic is "sanicfs1" in ASCII.
	Magic   uint64 = 0x73616e6963667331
	Version uint16 = 1
)

// Superblock is everything a volume persists outside of file data.
type Superblock struct {
	Geometry device.Geometry `json:"geometry"`
	UUID     uuid.UUID       `json:"uuid"`
	Table    Table           `json:"table"`
}

func New(geometry device.Geometry) Superblock {
	return Superblock{Geometry: geometry, UUID: uuid.New()}
}

// ReservedBlocks is the number of blocks at the front of the device that
// hold the superblock. File data starts at this index.
func ReservedBlocks(g device.Geometry) types.Block {
	return types.Block(math.DivRoundUp(SuperblockSize, g.Payload()))
}

func checkReserved(g device.Geometry) error {
	if r := ReservedBlocks(g); r >= g.Blocks {
		return fmt.Errorf(
			"superblock needs `%d` blocks; device has `%d`: %w",
			r,
			g.Blocks,
			types.ErrInvalidGeometry,
		)
	}
	return nil
}

// Load reads and validates the superblock chain at the front of `dev`.
func Load(dev device.Device) (Superblock, error) {
	g := dev.Geometry()
	if err := checkReserved(g); err != nil {
		return Superblock{}, fmt.Errorf("loading superblock: %w", err)
	}

	reserved := ReservedBlocks(g)
	payload := g.Payload()
	buf := make([]byte, types.Byte(reserved)*payload)
	for b := types.BlockSuperblock; b < reserved; b++ {
		link, err := alloc.ReadBlock(
			dev,
			b,
			buf[types.Byte(b)*payload:types.Byte(b+1)*payload],
		)
		if err != nil {
			return Superblock{}, fmt.Errorf("loading superblock: %w", err)
		}
		if wanted := superblockLink(b, reserved); link != wanted {
			return Superblock{}, fmt.Errorf(
				"loading superblock: block `%d` links to `%s`; wanted `%s`: %w",
				b,
				link,
				wanted,
				types.ErrInvalidFileSystem,
			)
		}
	}

	var sb Superblock
	if err := Decode(&sb, (*[SuperblockSize]byte)(buf[:SuperblockSize])); err != nil {
		return Superblock{}, fmt.Errorf("loading superblock: %w", err)
	}
	if err := sb.validate(g); err != nil {
		return Superblock{}, fmt.Errorf("loading superblock: %w", err)
	}
	return sb, nil
}

// Store writes `sb` across the reserved blocks of `dev`.
func Store(dev device.Device, sb *Superblock) error {
	g := dev.Geometry()
	if err := checkReserved(g); err != nil {
		return fmt.Errorf("storing superblock: %w", err)
	}

	reserved := ReservedBlocks(g)
	payload := g.Payload()
	buf := make([]byte, types.Byte(reserved)*payload)
	Encode(sb, (*[SuperblockSize]byte)(buf[:SuperblockSize]))
	for b := types.BlockSuperblock; b < reserved; b++ {
		if err := alloc.WriteBlock(
			dev,
			b,
			superblockLink(b, reserved),
			buf[types.Byte(b)*payload:types.Byte(b+1)*payload],
		); err != nil {
			return fmt.Errorf("storing superblock: %w", err)
		}
	}
	return nil
}

func superblockLink(b, reserved types.Block) types.Link {
	if b == reserved-1 {
		return types.LinkTerminator
	}
	return types.Link(b + 1)
}

func (sb *Superblock) validate(g device.Geometry) error {
	if sb.Geometry != g {
		return fmt.Errorf(
			"superblock geometry `%+v` does not match device `%+v`: %w",
			sb.Geometry,
			g,
			types.ErrInvalidFileSystem,
		)
	}
	reserved := ReservedBlocks(g)
	for i := range sb.Table {
		e := &sb.Table[i]
		if !e.Used() {
			if e.Name != "" || e.Size != 0 {
				return fmt.Errorf(
					"entry `%d` is unused but has name `%q` and size `%d`: %w",
					i,
					e.Name,
					e.Size,
					types.ErrInvalidFileSystem,
				)
			}
			continue
		}
		if e.Start < reserved || e.Start >= g.Blocks {
			return fmt.Errorf(
				"entry `%d` (`%s`) starts at block `%d`, not in [%d, %d): %w",
				i,
				e.Name,
				e.Start,
				reserved,
				g.Blocks,
				types.ErrInvalidFileSystem,
			)
		}
		if err := ValidateName(e.Name); err != nil {
			return fmt.Errorf(
				"entry `%d`: %v: %w",
				i,
				err,
				types.ErrInvalidFileSystem,
			)
		}
		for j := 0; j < i; j++ {
			if sb.Table[j].Used() && sb.Table[j].Name == e.Name {
				return fmt.Errorf(
					"entries `%d` and `%d` are both named `%s`: %w",
					j,
					i,
					e.Name,
					types.ErrInvalidFileSystem,
				)
			}
		}
	}
	return nil
}
