package alloc

import (
	"encoding/binary"
	"fmt"

	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

// ReadBlock reads block `b`, copying its payload into `payload` (which may
// be shorter than a full payload) and returning its link field.
func ReadBlock(
	dev device.Device,
	b types.Block,
	payload []byte,
) (types.Link, error) {
	buf := make([]byte, dev.Geometry().BlockSize)
	if err := dev.ReadBlock(b, buf); err != nil {
		return types.LinkFree, err
	}
	copy(payload, buf[types.LinkSize:])
	return decodeLink(buf), nil
}

// WriteBlock writes `link` and `payload` to block `b`. A payload shorter
// than the block's payload is zero-padded.
func WriteBlock(
	dev device.Device,
	b types.Block,
	link types.Link,
	payload []byte,
) error {
	g := dev.Geometry()
	if types.Byte(len(payload)) > g.Payload() {
		return &types.DeviceErr{
			Op:    "write",
			Block: b,
			Err: fmt.Errorf(
				"payload length `%d` exceeds block payload `%d`",
				len(payload),
				g.Payload(),
			),
		}
	}
	buf := make([]byte, g.BlockSize)
	encodeLink(buf, link)
	copy(buf[types.LinkSize:], payload)
	return dev.WriteBlock(b, buf)
}

func encodeLink(p []byte, link types.Link) {
	binary.BigEndian.PutUint16(p, uint16(link))
}

func decodeLink(p []byte) types.Link {
	return types.Link(int16(binary.BigEndian.Uint16(p)))
}

// readLink reads only the link field of block `b`.
func readLink(dev device.Device, b types.Block) (types.Link, error) {
	return ReadBlock(dev, b, nil)
}

// writeLink rewrites the link field of block `b` and keeps its payload.
func writeLink(dev device.Device, b types.Block, link types.Link) error {
	buf := make([]byte, dev.Geometry().BlockSize)
	if err := dev.ReadBlock(b, buf); err != nil {
		return err
	}
	encodeLink(buf, link)
	return dev.WriteBlock(b, buf)
}
