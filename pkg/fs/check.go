package fs

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/directory"
	"github.com/weberc2/sanicfs/pkg/math"
	"github.com/weberc2/sanicfs/pkg/types"
)

// Report is the result of a consistency check. A healthy volume has no
// problems and `Free + FileBlocks + Reserved == Blocks`.
type Report struct {
	Blocks     types.Block `json:"blocks"`
	Reserved   types.Block `json:"reserved"`
	FileBlocks types.Block `json:"fileBlocks"`
	Free       types.Block `json:"free"`
	Problems   []string    `json:"problems"`
}

func (r *Report) OK() bool { return len(r.Problems) < 1 }

func (r *Report) problemf(format string, v ...interface{}) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, v...))
}

// Check walks every file's chain and the free set of the mounted volume. It
// only returns an error when the device fails; inconsistencies are listed in
// the report.
func (fs *FileSystem) Check() (Report, error) {
	if err := fs.checkMounted("checking volume"); err != nil {
		return Report{}, err
	}
	g := fs.superblock.Geometry
	report := Report{
		Blocks:   g.Blocks,
		Reserved: directory.ReservedBlocks(g),
	}

	owners := map[types.Block]int{}
	for i := range fs.superblock.Table {
		e := &fs.superblock.Table[i]
		if !e.Used() {
			continue
		}
		if err := fs.checkChain(&report, owners, i, e); err != nil {
			return Report{}, err
		}
	}
	report.FileBlocks = types.Block(len(owners))

	for b := report.Reserved; b < g.Blocks; b++ {
		link, err := alloc.ReadBlock(fs.Device, b, nil)
		if err != nil {
			return Report{}, fmt.Errorf("checking volume: %w", err)
		}
		if link.Free() {
			report.Free++
		} else if _, owned := owners[b]; !owned {
			report.problemf("block `%d` is in use but unreachable", b)
		}
	}

	if total := report.Free + report.FileBlocks + report.Reserved; total != g.Blocks {
		report.problemf(
			"free `%d` + file `%d` + reserved `%d` blocks = `%d`; wanted `%d`",
			report.Free,
			report.FileBlocks,
			report.Reserved,
			total,
			g.Blocks,
		)
	}

	free, err := fs.allocator.FreeCount()
	if err != nil {
		return Report{}, fmt.Errorf("checking volume: %w", err)
	}
	if free != report.Free {
		report.problemf(
			"allocator counts `%d` free blocks; link fields count `%d`",
			free,
			report.Free,
		)
	}

	fs.log().WithField("problems", len(report.Problems)).
		WithField("free", report.Free).
		Debug("checked volume")
	return report, nil
}

func (fs *FileSystem) checkChain(
	report *Report,
	owners map[types.Block]int,
	entry int,
	e *directory.Entry,
) error {
	var length types.Byte
	b := e.Start
	for {
		if b < report.Reserved || b >= report.Blocks {
			report.problemf(
				"file `%s`: block `%d` not in [%d, %d)",
				e.Name,
				b,
				report.Reserved,
				report.Blocks,
			)
			break
		}
		if owner, seen := owners[b]; seen {
			if owner == entry {
				report.problemf("file `%s`: cycle at block `%d`", e.Name, b)
			} else {
				report.problemf(
					"file `%s`: block `%d` is shared with `%s`",
					e.Name,
					b,
					fs.superblock.Table[owner].Name,
				)
			}
			break
		}
		owners[b] = entry
		length++

		link, err := fs.allocator.Next(b)
		if err != nil {
			return fmt.Errorf("checking file `%s`: %w", e.Name, err)
		}
		if link.Terminal() {
			break
		}
		if link <= 0 {
			report.problemf(
				"file `%s`: block `%d` has link `%s` instead of a terminator",
				e.Name,
				b,
				link,
			)
			break
		}
		b = link.Block()
	}

	if wanted := math.Max(1, math.DivRoundUp(e.Size, fs.payload())); length < wanted {
		report.problemf(
			"file `%s`: chain has `%d` blocks; size `%d` needs `%d`",
			e.Name,
			length,
			e.Size,
			wanted,
		)
	}
	return nil
}
