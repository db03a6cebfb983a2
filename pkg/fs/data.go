package fs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/directory"
	"github.com/weberc2/sanicfs/pkg/math"
	"github.com/weberc2/sanicfs/pkg/types"
)

// locate walks `offset / payload` links from `start` and returns the block
// holding `offset` and the offset within that block's payload. An offset
// that falls exactly at the end of the chain's last, full block resolves to
// the end of that block (sub-offset == payload).
func (fs *FileSystem) locate(
	start types.Block,
	offset types.Byte,
) (types.Block, types.Byte, error) {
	payload := fs.payload()
	hops := offset / payload
	b := start
	for i := types.Byte(0); i < hops; i++ {
		link, err := fs.allocator.Next(b)
		if err != nil {
			return types.BlockNil, 0, fmt.Errorf(
				"locating offset `%d`: %w",
				offset,
				err,
			)
		}
		if link.Terminal() && i == hops-1 && offset%payload == 0 {
			return b, payload, nil
		}
		if b, err = follow(b, link); err != nil {
			return types.BlockNil, 0, fmt.Errorf(
				"locating offset `%d`: %w",
				offset,
				err,
			)
		}
	}
	return b, offset % payload, nil
}

// follow returns the block `link` points to, failing if the chain ends or
// is broken at `b`.
func follow(b types.Block, link types.Link) (types.Block, error) {
	if link.Terminal() {
		return types.BlockNil, fmt.Errorf(
			"chain ends at block `%d`: %w",
			b,
			types.ErrCorruptChain,
		)
	}
	if link <= 0 {
		return types.BlockNil, fmt.Errorf(
			"block `%d` has link `%s`: %w",
			b,
			link,
			types.ErrCorruptChain,
		)
	}
	return link.Block(), nil
}

// Read copies up to `len(p)` bytes from the descriptor's offset into `p`,
// never past the end of the file, and advances the offset by the count. At
// end of file it returns 0 and no error.
func (fs *FileSystem) Read(fd int, p []byte) (int, error) {
	d, e, err := fs.descriptor("reading", fd)
	if err != nil {
		return 0, err
	}
	want := math.Min(types.Byte(len(p)), e.Size-d.Offset)
	if want <= 0 {
		return 0, nil
	}

	b, sub, err := fs.locate(e.Start, d.Offset)
	if err != nil {
		return 0, fmt.Errorf("reading `%s`: %w", e.Name, err)
	}

	payload := fs.payload()
	buf := make([]byte, payload)
	var (
		n     types.Byte
		link  types.Link
		known bool
	)
	for n < want {
		if sub == payload {
			if !known {
				if link, err = fs.allocator.Next(b); err != nil {
					return 0, fmt.Errorf("reading `%s`: %w", e.Name, err)
				}
			}
			if b, err = follow(b, link); err != nil {
				return 0, fmt.Errorf("reading `%s`: %w", e.Name, err)
			}
			sub = 0
		}
		if link, err = alloc.ReadBlock(fs.Device, b, buf); err != nil {
			return 0, fmt.Errorf("reading `%s`: %w", e.Name, err)
		}
		known = true
		copied := types.Byte(copy(p[n:want], buf[sub:]))
		n += copied
		sub += copied
	}

	d.Offset += n
	fs.log().WithFields(logrus.Fields{
		"file":   e.Name,
		"fd":     fd,
		"offset": d.Offset,
		"bytes":  n,
	}).Debug("read")
	return int(n), nil
}

// Write copies `p` into the file at the descriptor's offset, growing the
// chain one zeroed block at a time as needed. When the disk fills it stops
// early and returns the partial count without an error. A device failure
// returns the bytes committed so far along with the error. Either way, the
// offset advances by the count and the size grows to cover it.
func (fs *FileSystem) Write(fd int, p []byte) (int, error) {
	d, e, err := fs.descriptor("writing", fd)
	if err != nil {
		return 0, err
	}
	if len(p) < 1 {
		return 0, nil
	}

	b, sub, err := fs.locate(e.Start, d.Offset)
	if err != nil {
		return 0, fmt.Errorf("writing `%s`: %w", e.Name, err)
	}

	log := fs.log().WithField("file", e.Name).WithField("fd", fd)
	payload := fs.payload()
	buf := make([]byte, payload)
	var written types.Byte
	commit := func() {
		d.Offset += written
		e.Size = math.Max(e.Size, d.Offset)
	}

	for written < types.Byte(len(p)) {
		if sub == payload {
			link, err := fs.allocator.Next(b)
			if err != nil {
				commit()
				return int(written), fmt.Errorf("writing `%s`: %w", e.Name, err)
			}
			if link.Terminal() {
				next, err := fs.extend(b)
				if errors.Is(err, types.ErrDiskFull) {
					commit()
					log.WithFields(logrus.Fields{
						"written":   written,
						"requested": len(p),
					}).Warn("disk full; partial write")
					return int(written), nil
				}
				if err != nil {
					commit()
					return int(written), fmt.Errorf("writing `%s`: %w", e.Name, err)
				}
				b = next
			} else if b, err = follow(b, link); err != nil {
				commit()
				return int(written), fmt.Errorf("writing `%s`: %w", e.Name, err)
			}
			sub = 0
		}

		link, err := alloc.ReadBlock(fs.Device, b, buf)
		if err != nil {
			commit()
			return int(written), fmt.Errorf("writing `%s`: %w", e.Name, err)
		}
		copied := types.Byte(copy(buf[sub:], p[written:]))
		if err := alloc.WriteBlock(fs.Device, b, link, buf); err != nil {
			commit()
			return int(written), fmt.Errorf("writing `%s`: %w", e.Name, err)
		}
		written += copied
		sub += copied
	}

	commit()
	log.WithField("offset", d.Offset).
		WithField("bytes", written).
		Debug("wrote")
	return int(written), nil
}

// extend allocates a zeroed block and links it after `last`. If the link
// cannot be written the new block is released again.
func (fs *FileSystem) extend(last types.Block) (types.Block, error) {
	next, err := fs.allocator.Alloc()
	if err != nil {
		return types.BlockNil, err
	}
	if err := fs.allocator.SetNext(last, types.Link(next)); err != nil {
		if err := fs.allocator.Free(next); err != nil {
			fs.log().WithField("block", next).
				Errorf("releasing unlinked block: %v", err)
		}
		return types.BlockNil, err
	}
	return next, nil
}

// Seek moves the descriptor's offset to `offset`, which must be within
// [0, size].
func (fs *FileSystem) Seek(fd int, offset types.Byte) error {
	d, e, err := fs.descriptor("seeking", fd)
	if err != nil {
		return err
	}
	if offset < 0 || offset > e.Size {
		return fmt.Errorf(
			"seeking `%s` to `%d`: size is `%d`: %w",
			e.Name,
			offset,
			e.Size,
			types.ErrOutOfBounds,
		)
	}
	d.Offset = offset
	return nil
}

// Offset returns the descriptor's current offset.
func (fs *FileSystem) Offset(fd int) (types.Byte, error) {
	d, _, err := fs.descriptor("getting offset", fd)
	if err != nil {
		return 0, err
	}
	return d.Offset, nil
}

func (fs *FileSystem) Size(fd int) (types.Byte, error) {
	_, e, err := fs.descriptor("getting size", fd)
	if err != nil {
		return 0, err
	}
	return e.Size, nil
}

// Truncate shrinks the file to `length` bytes and releases the blocks it no
// longer needs. The new last block is terminated before the old tail is
// freed. Every descriptor on the file is clamped to the new size.
func (fs *FileSystem) Truncate(fd int, length types.Byte) error {
	_, e, err := fs.descriptor("truncating", fd)
	if err != nil {
		return err
	}
	if length < 0 || length > e.Size {
		return fmt.Errorf(
			"truncating `%s` to `%d`: size is `%d`: %w",
			e.Name,
			length,
			e.Size,
			types.ErrOutOfBounds,
		)
	}
	if length == e.Size {
		return nil
	}

	keep := math.Max(1, math.DivRoundUp(length, fs.payload()))
	last := e.Start
	for i := types.Byte(1); i < keep; i++ {
		link, err := fs.allocator.Next(last)
		if err != nil {
			return fmt.Errorf("truncating `%s`: %w", e.Name, err)
		}
		if last, err = follow(last, link); err != nil {
			return fmt.Errorf("truncating `%s`: %w", e.Name, err)
		}
	}
	tail, err := fs.allocator.Next(last)
	if err != nil {
		return fmt.Errorf("truncating `%s`: %w", e.Name, err)
	}
	if !tail.Terminal() {
		if err := fs.allocator.SetNext(last, types.LinkTerminator); err != nil {
			return fmt.Errorf("truncating `%s`: %w", e.Name, err)
		}
	}

	old := e.Size
	e.Size = length
	fs.clampOffsets(e)
	fs.log().WithFields(logrus.Fields{
		"file": e.Name,
		"fd":   fd,
		"from": old,
		"to":   length,
	}).Debug("truncated")

	if !tail.Terminal() {
		if err := fs.allocator.Free(tail.Block()); err != nil {
			return fmt.Errorf("truncating `%s`: freeing tail: %w", e.Name, err)
		}
	}
	return nil
}

// clampOffsets pulls every descriptor on `e` back inside the file.
func (fs *FileSystem) clampOffsets(e *directory.Entry) {
	for fd := range fs.descriptors {
		d := &fs.descriptors[fd]
		if d.Used() && &fs.superblock.Table[d.Entry] == e {
			d.Offset = math.Min(d.Offset, e.Size)
		}
	}
}
