package descriptor

import (
	"testing"

	"github.com/weberc2/sanicfs/pkg/testsupport"
	"github.com/weberc2/sanicfs/pkg/types"
)

func TestOpenClose(t *testing.T) {
	table := NewTable()
	if found := table.Count(); found != 0 {
		t.Fatalf("Count(): wanted `0`; found `%d`", found)
	}

	first, err := table.Open(4)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	second, err := table.Open(4)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if first == second {
		t.Fatalf("Open(): wanted distinct descriptors; found `%d` twice", first)
	}
	if !table.Refers(4) || table.Refers(5) {
		t.Fatalf("Refers(): wanted only entry `4`; found `%s`", table.Debug())
	}

	d, err := table.Get(first)
	if err != nil {
		t.Fatalf("Get(): unexpected err: %v", err)
	}
	d.Offset = 10
	if d, _ := table.Get(second); d.Offset != 0 {
		t.Fatalf("Get(): wanted independent offsets; found `%d`", d.Offset)
	}

	if err := table.Close(first); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	if !table.Refers(4) {
		t.Fatal("Refers(): wanted `true` while one descriptor remains")
	}
	if err := table.Close(second); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	if table.Refers(4) {
		t.Fatal("Refers(): wanted `false` after closing every descriptor")
	}

	// closed slots are reused lowest-first
	if fd, err := table.Open(7); err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	} else if fd != first {
		t.Fatalf("Open(): wanted `%d`; found `%d`", first, fd)
	}
}

func TestClose_Invalid(t *testing.T) {
	table := NewTable()
	if _, err := table.Open(0); err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	for _, fd := range []int{-1, 1, types.MaxDescriptors, 1000} {
		if err := testsupport.CompareErr(
			testsupport.Is(types.ErrInvalidDescriptor),
			table.Close(fd),
		); err != nil {
			t.Fatalf("Close(%d): %v", fd, err)
		}
	}
}

func TestOpen_TooMany(t *testing.T) {
	table := NewTable()
	for i := 0; i < types.MaxDescriptors; i++ {
		if _, err := table.Open(0); err != nil {
			t.Fatalf("Open(): unexpected err: %v", err)
		}
	}
	_, err := table.Open(0)
	if err := testsupport.CompareErr(
		testsupport.Is(types.ErrTooManyOpen),
		err,
	); err != nil {
		t.Fatal(err)
	}

	table.Reset()
	if found := table.Count(); found != 0 {
		t.Fatalf("Count(): wanted `0` after Reset(); found `%d`", found)
	}
}

func TestDebug(t *testing.T) {
	table := NewTable()
	if _, err := table.Open(3); err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	wanted := `{"0":{"entry":3,"offset":0}}`
	if found := table.Debug(); found != wanted {
		t.Fatalf("Debug(): wanted `%s`; found `%s`", wanted, found)
	}
}
