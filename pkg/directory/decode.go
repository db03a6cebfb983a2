package directory

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// Decode populates `sb` from `p`, rejecting anything that is not a sanicfs
// superblock with `types.ErrInvalidFileSystem`. Table contents are checked
// against the device separately, at load.
func Decode(sb *Superblock, p *[SuperblockSize]byte) error {
	if magic := getU64(p[superblockFieldMagicOffset:]); magic != Magic {
		return fmt.Errorf(
			"decoding superblock: decoded magic `%#x`: %w",
			magic,
			types.ErrInvalidFileSystem,
		)
	}
	sum := blake2b.Sum256(p[:superblockFieldChecksumOffset])
	if !bytes.Equal(sum[:], p[superblockFieldChecksumOffset:]) {
		return fmt.Errorf(
			"decoding superblock: checksum mismatch: %w",
			types.ErrInvalidFileSystem,
		)
	}
	if version := getU16(p[superblockFieldVersionOffset:]); version != Version {
		return fmt.Errorf(
			"decoding superblock: unsupported version `%d`: %w",
			version,
			types.ErrInvalidFileSystem,
		)
	}
	if count := getU16(
		p[superblockFieldEntryCountOffset:],
	); count != types.MaxFiles {
		return fmt.Errorf(
			"decoding superblock: entry count `%d`; wanted `%d`: %w",
			count,
			types.MaxFiles,
			types.ErrInvalidFileSystem,
		)
	}

	*sb = Superblock{
		Geometry: device.Geometry{
			BlockSize: types.Byte(getU32(p[superblockFieldBlockSizeOffset:])),
			Blocks:    types.Block(getU32(p[superblockFieldBlocksOffset:])),
		},
	}
	copy(sb.UUID[:], p[superblockFieldUUIDOffset:superblockFieldEntryCountOffset])
	for i := range sb.Table {
		decodeEntry(
			&sb.Table[i],
			p[superblockFieldEntriesOffset+i*EntrySize:],
		)
	}
	return nil
}

func decodeEntry(e *Entry, p []byte) {
	name := p[entryFieldNameOffset:entryFieldStartOffset]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	*e = Entry{
		Name:  string(name),
		Start: types.Block(int16(getU16(p[entryFieldStartOffset:]))),
		Size:  types.Byte(getU32(p[entryFieldSizeOffset:])),
	}
}

func getU16(p []byte) uint16 {
	return binary.BigEndian.Uint16(p)
}

func getU32(p []byte) uint32 {
	return binary.BigEndian.Uint32(p)
}

func getU64(p []byte) uint64 {
	return binary.BigEndian.Uint64(p)
}
