package device

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/types"
)

// Images holds volume images by name. Sharing one `Images` between several
// `Memory` devices lets them see each other's volumes, which is how a
// volume survives an unmount/mount cycle in memory.
type Images map[string][]byte

// Memory is a device backed by a byte slice.
type Memory struct {
	Images   Images
	geometry Geometry
	name     string
	data     []byte
}

func NewMemory(geometry Geometry) *Memory {
	return &Memory{Images: Images{}, geometry: geometry}
}

func (m *Memory) Geometry() Geometry { return m.geometry }

func (m *Memory) Create(name string) error {
	if err := m.geometry.Validate(); err != nil {
		return types.NewDeviceErr("create", err)
	}
	if m.data != nil {
		return types.NewDeviceErr(
			"create",
			fmt.Errorf("image `%s` is still open", m.name),
		)
	}
	if m.Images == nil {
		m.Images = Images{}
	}
	data := make([]byte, m.geometry.Size())
	m.Images[name] = data
	m.name, m.data = name, data
	return nil
}

func (m *Memory) Open(name string) error {
	if m.data != nil {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("image `%s` is still open", m.name),
		)
	}
	data, found := m.Images[name]
	if !found {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf("image `%s`: %w", name, types.ErrVolumeNotFound),
		)
	}
	if types.Byte(len(data)) != m.geometry.Size() {
		return types.NewDeviceErr(
			"open",
			fmt.Errorf(
				"image `%s` is `%d` bytes; wanted `%d`: %w",
				name,
				len(data),
				m.geometry.Size(),
				types.ErrInvalidGeometry,
			),
		)
	}
	m.name, m.data = name, data
	return nil
}

func (m *Memory) Close() error {
	if m.data == nil {
		return types.NewDeviceErr("close", errNotOpen)
	}
	m.name, m.data = "", nil
	return nil
}

func (m *Memory) ReadBlock(index types.Block, p []byte) error {
	if m.data == nil {
		return &types.DeviceErr{Op: "read", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(m.geometry, "read", index, p); err != nil {
		return err
	}
	offset := m.geometry.Offset(index)
	copy(p, m.data[offset:offset+m.geometry.BlockSize])
	return nil
}

func (m *Memory) WriteBlock(index types.Block, p []byte) error {
	if m.data == nil {
		return &types.DeviceErr{Op: "write", Block: index, Err: errNotOpen}
	}
	if err := checkTransfer(m.geometry, "write", index, p); err != nil {
		return err
	}
	offset := m.geometry.Offset(index)
	copy(m.data[offset:offset+m.geometry.BlockSize], p)
	return nil
}

// Bytes returns the open image. It is nil when nothing is open.
func (m *Memory) Bytes() []byte { return m.data }
