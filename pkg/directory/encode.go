package directory

import (
	"encoding/binary"

	"github.com/weberc2/sanicfs/pkg/types"
	"golang.org/x/crypto/blake2b"
)

const (
	size16 = 2
	size32 = 4
	size64 = 8

	superblockFieldMagicOffset      = 0
	superblockFieldVersionOffset    = superblockFieldMagicOffset + size64
	superblockFieldBlockSizeOffset  = superblockFieldVersionOffset + size16
	superblockFieldBlocksOffset     = superblockFieldBlockSizeOffset + size32
	superblockFieldUUIDOffset       = superblockFieldBlocksOffset + size32
	superblockFieldEntryCountOffset = superblockFieldUUIDOffset + 16
	superblockFieldEntriesOffset    = superblockFieldEntryCountOffset + size16

	entryFieldNameOffset  = 0
	entryFieldStartOffset = entryFieldNameOffset + types.MaxFileName
	entryFieldSizeOffset  = entryFieldStartOffset + size16
	EntrySize             = entryFieldSizeOffset + size32

	superblockFieldChecksumOffset = superblockFieldEntriesOffset +
		types.MaxFiles*EntrySize

	// SuperblockSize is the encoded size of a superblock, checksum included.
	SuperblockSize = superblockFieldChecksumOffset + blake2b.Size256
)

func Encode(sb *Superblock, p *[SuperblockSize]byte) {
	putU64(p[superblockFieldMagicOffset:], Magic)
	putU16(p[superblockFieldVersionOffset:], Version)
	putU32(p[superblockFieldBlockSizeOffset:], uint32(sb.Geometry.BlockSize))
	putU32(p[superblockFieldBlocksOffset:], uint32(sb.Geometry.Blocks))
	copy(p[superblockFieldUUIDOffset:superblockFieldEntryCountOffset], sb.UUID[:])
	putU16(p[superblockFieldEntryCountOffset:], types.MaxFiles)
	for i := range sb.Table {
		encodeEntry(
			&sb.Table[i],
			p[superblockFieldEntriesOffset+i*EntrySize:],
		)
	}
	sum := blake2b.Sum256(p[:superblockFieldChecksumOffset])
	copy(p[superblockFieldChecksumOffset:], sum[:])
}

func encodeEntry(e *Entry, p []byte) {
	name := p[entryFieldNameOffset:entryFieldStartOffset]
	for i := range name {
		name[i] = 0
	}
	copy(name, e.Name)
	putU16(p[entryFieldStartOffset:], uint16(e.Start))
	putU32(p[entryFieldSizeOffset:], uint32(e.Size))
}

func putU16(p []byte, u uint16) {
	binary.BigEndian.PutUint16(p, u)
}

func putU32(p []byte, u uint32) {
	binary.BigEndian.PutUint32(p, u)
}

func putU64(p []byte, u uint64) {
	binary.BigEndian.PutUint64(p, u)
}
