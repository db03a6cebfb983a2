package alloc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

const testFirst types.Block = 2

var testGeometry = device.Geometry{BlockSize: 10, Blocks: 16}

func newDevice(t *testing.T) device.Device {
	t.Helper()
	dev := device.NewMemory(testGeometry)
	if err := dev.Create("vol"); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	return dev
}

var allocators = []struct {
	name   string
	create New
}{
	{name: "link", create: NewLinkAllocator},
	{name: "indexed", create: NewIndexedAllocator},
}

// eachAllocator runs `f` against a fresh device for every allocator.
func eachAllocator(
	t *testing.T,
	f func(t *testing.T, dev device.Device, a Allocator),
) {
	for _, allocator := range allocators {
		t.Run(allocator.name, func(t *testing.T) {
			dev := newDevice(t)
			a, err := allocator.create(dev, testFirst)
			if err != nil {
				t.Fatalf("New(): unexpected err: %v", err)
			}
			f(t, dev, a)
		})
	}
}

func mustAlloc(t *testing.T, a Allocator) types.Block {
	t.Helper()
	b, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc(): unexpected err: %v", err)
	}
	return b
}

func mustLink(t *testing.T, a Allocator, b types.Block, link types.Link) {
	t.Helper()
	if err := a.SetNext(b, link); err != nil {
		t.Fatalf("SetNext(%d, %s): unexpected err: %v", b, link, err)
	}
}

func wantFreeCount(t *testing.T, a Allocator, wanted types.Block) {
	t.Helper()
	found, err := a.FreeCount()
	if err != nil {
		t.Fatalf("FreeCount(): unexpected err: %v", err)
	}
	if found != wanted {
		t.Fatalf("FreeCount(): wanted `%d`; found `%d`", wanted, found)
	}
}

func TestAlloc(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		for wanted := testFirst; wanted < testFirst+3; wanted++ {
			if found := mustAlloc(t, a); found != wanted {
				t.Fatalf("Alloc(): wanted `%d`; found `%d`", wanted, found)
			}
		}
		wantFreeCount(t, a, testGeometry.Blocks-testFirst-3)

		link, err := a.Next(testFirst)
		if err != nil {
			t.Fatalf("Next(): unexpected err: %v", err)
		}
		if link != types.LinkTerminator {
			t.Fatalf("Next(): wanted `%s`; found `%s`", types.LinkTerminator, link)
		}
	})
}

func TestAlloc_ZeroesPayload(t *testing.T) {
	dev := newDevice(t)

	// a free block left with stale data from an earlier file
	stale := bytes.Repeat([]byte{0xAA}, int(testGeometry.Payload()))
	if err := WriteBlock(dev, testFirst, types.LinkFree, stale); err != nil {
		t.Fatalf("WriteBlock(): unexpected err: %v", err)
	}

	a, err := NewLinkAllocator(dev, testFirst)
	if err != nil {
		t.Fatalf("NewLinkAllocator(): unexpected err: %v", err)
	}
	b := mustAlloc(t, a)

	payload := make([]byte, testGeometry.Payload())
	if _, err := ReadBlock(dev, b, payload); err != nil {
		t.Fatalf("ReadBlock(): unexpected err: %v", err)
	}
	if wanted := make([]byte, testGeometry.Payload()); !bytes.Equal(
		payload,
		wanted,
	) {
		t.Fatalf("ReadBlock(): wanted `%#x`; found `%#x`", wanted, payload)
	}
}

func TestAlloc_DiskFull(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		for i := testFirst; i < testGeometry.Blocks; i++ {
			mustAlloc(t, a)
		}
		wantFreeCount(t, a, 0)
		if _, err := a.Alloc(); !errors.Is(err, types.ErrDiskFull) {
			t.Fatalf("Alloc(): wanted `%v`; found `%v`", types.ErrDiskFull, err)
		}
	})
}

func TestFree(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		first, second, third := mustAlloc(t, a), mustAlloc(t, a), mustAlloc(t, a)
		mustLink(t, a, first, types.Link(second))
		mustLink(t, a, second, types.Link(third))
		wantFreeCount(t, a, testGeometry.Blocks-testFirst-3)

		if err := a.Free(first); err != nil {
			t.Fatalf("Free(): unexpected err: %v", err)
		}
		wantFreeCount(t, a, testGeometry.Blocks-testFirst)

		for _, b := range []types.Block{first, second, third} {
			link, err := a.Next(b)
			if err != nil {
				t.Fatalf("Next(): unexpected err: %v", err)
			}
			if !link.Free() {
				t.Fatalf("Next(%d): wanted `free`; found `%s`", b, link)
			}
		}

		if found := mustAlloc(t, a); found != first {
			t.Fatalf("Alloc(): wanted `%d`; found `%d`", first, found)
		}
	})
}

func TestFree_NoOps(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		mustAlloc(t, a)
		for _, head := range []types.Block{
			types.BlockNil,
			types.Block(types.LinkTerminator),
		} {
			if err := a.Free(head); err != nil {
				t.Fatalf("Free(%d): unexpected err: %v", head, err)
			}
		}
		wantFreeCount(t, a, testGeometry.Blocks-testFirst-1)

		// freeing an already-free chain does nothing
		if err := a.Free(testGeometry.Blocks - 1); err != nil {
			t.Fatalf("Free(): unexpected err: %v", err)
		}
		wantFreeCount(t, a, testGeometry.Blocks-testFirst-1)
	})
}

func TestFree_Cycle(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		first, second := mustAlloc(t, a), mustAlloc(t, a)
		mustLink(t, a, first, types.Link(second))
		mustLink(t, a, second, types.Link(first))

		if err := a.Free(first); err != nil {
			t.Fatalf("Free(): unexpected err: %v", err)
		}
		wantFreeCount(t, a, testGeometry.Blocks-testFirst)
	})
}

func TestFree_Corrupt(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		if err := a.Free(testFirst - 1); !errors.Is(err, types.ErrCorruptChain) {
			t.Fatalf(
				"Free(reserved): wanted `%v`; found `%v`",
				types.ErrCorruptChain,
				err,
			)
		}

		b := mustAlloc(t, a)
		if err := WriteBlock(dev, b, types.Link(100), nil); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
		if err := a.Free(b); !errors.Is(err, types.ErrCorruptChain) {
			t.Fatalf(
				"Free(): wanted `%v`; found `%v`",
				types.ErrCorruptChain,
				err,
			)
		}
	})
}

func TestSetNext(t *testing.T) {
	eachAllocator(t, func(t *testing.T, dev device.Device, a Allocator) {
		b := mustAlloc(t, a)
		payload := []byte("payload!")
		if err := WriteBlock(dev, b, types.LinkTerminator, payload); err != nil {
			t.Fatalf("WriteBlock(): unexpected err: %v", err)
		}
		mustLink(t, a, b, types.Link(b+1))

		found := make([]byte, len(payload))
		link, err := ReadBlock(dev, b, found)
		if err != nil {
			t.Fatalf("ReadBlock(): unexpected err: %v", err)
		}
		if link != types.Link(b+1) {
			t.Fatalf("ReadBlock(): wanted link `%d`; found `%s`", b+1, link)
		}
		if !bytes.Equal(found, payload) {
			t.Fatalf("ReadBlock(): wanted `%s`; found `%s`", payload, found)
		}

		for _, link := range []types.Link{
			types.Link(testFirst - 1),
			types.Link(testGeometry.Blocks),
		} {
			if err := a.SetNext(b, link); !errors.Is(
				err,
				types.ErrCorruptChain,
			) {
				t.Fatalf(
					"SetNext(%s): wanted `%v`; found `%v`",
					link,
					types.ErrCorruptChain,
					err,
				)
			}
		}
	})
}

func TestIndexedAllocator_MatchesLinks(t *testing.T) {
	dev := newDevice(t)
	link, err := NewLinkAllocator(dev, testFirst)
	if err != nil {
		t.Fatalf("NewLinkAllocator(): unexpected err: %v", err)
	}
	for i := 0; i < 5; i++ {
		mustAlloc(t, link)
	}
	if err := link.Free(testFirst + 1); err != nil {
		t.Fatalf("Free(): unexpected err: %v", err)
	}

	indexed, err := NewIndexedAllocator(dev, testFirst)
	if err != nil {
		t.Fatalf("NewIndexedAllocator(): unexpected err: %v", err)
	}
	wantFreeCount(t, indexed, testGeometry.Blocks-testFirst-4)

	// both allocators agree on the lowest free block
	if found := mustAlloc(t, indexed); found != testFirst+1 {
		t.Fatalf("Alloc(): wanted `%d`; found `%d`", testFirst+1, found)
	}
	wantFreeCount(t, link, testGeometry.Blocks-testFirst-5)
}

func TestNewAllocator_InvalidFirst(t *testing.T) {
	for _, allocator := range allocators {
		t.Run(allocator.name, func(t *testing.T) {
			for _, first := range []types.Block{0, testGeometry.Blocks + 1} {
				if _, err := allocator.create(
					newDevice(t),
					first,
				); !errors.Is(err, types.ErrInvalidGeometry) {
					t.Fatalf(
						"New(%d): wanted `%v`; found `%v`",
						first,
						types.ErrInvalidGeometry,
						err,
					)
				}
			}
		})
	}
}
