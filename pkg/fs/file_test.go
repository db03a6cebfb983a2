package fs

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/weberc2/sanicfs/pkg/device"
	"github.com/weberc2/sanicfs/pkg/types"
)

func TestFile(t *testing.T) {
	fs := mounted(t, testGeometry, nil)
	if err := fs.Create("notes"); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	f, err := fs.OpenFile("notes")
	if err != nil {
		t.Fatalf("OpenFile(): unexpected err: %v", err)
	}

	data := pattern(777)
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		t.Fatalf("io.Copy(): unexpected err: %v", err)
	}

	for _, testCase := range []struct {
		offset int64
		whence int
		wanted int64
	}{
		{offset: 0, whence: io.SeekStart, wanted: 0},
		{offset: 10, whence: io.SeekCurrent, wanted: 10},
		{offset: -7, whence: io.SeekEnd, wanted: 770},
		{offset: -770, whence: io.SeekCurrent, wanted: 0},
	} {
		found, err := f.Seek(testCase.offset, testCase.whence)
		if err != nil {
			t.Fatalf("Seek(%d, %d): unexpected err: %v", testCase.offset, testCase.whence, err)
		}
		if found != testCase.wanted {
			t.Fatalf(
				"Seek(%d, %d): wanted `%d`; found `%d`",
				testCase.offset,
				testCase.whence,
				testCase.wanted,
				found,
			)
		}
	}
	if _, err := f.Seek(1, io.SeekEnd); !errors.Is(err, types.ErrOutOfBounds) {
		t.Fatalf("Seek(): wanted `%v`; found `%v`", types.ErrOutOfBounds, err)
	}

	found, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("io.ReadAll(): unexpected err: %v", err)
	}
	if !bytes.Equal(found, data) {
		t.Fatalf("io.ReadAll(): wanted `%#x`; found `%#x`", data, found)
	}

	if err := f.Truncate(100); err != nil {
		t.Fatalf("Truncate(): unexpected err: %v", err)
	}
	if size, err := f.Size(); err != nil || size != 100 {
		t.Fatalf("Size(): wanted `100, nil`; found `%d, %v`", size, err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close(): unexpected err: %v", err)
	}
	if err := f.Close(); !errors.Is(err, types.ErrInvalidDescriptor) {
		t.Fatalf("Close(): wanted `%v`; found `%v`", types.ErrInvalidDescriptor, err)
	}
}

func TestFile_ShortWrite(t *testing.T) {
	fs := mounted(t, device.Geometry{BlockSize: 66, Blocks: 26}, nil)
	if err := fs.Create("small"); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	f, err := fs.OpenFile("small")
	if err != nil {
		t.Fatalf("OpenFile(): unexpected err: %v", err)
	}

	n, err := f.Write(pattern(200))
	if !errors.Is(err, types.ErrDiskFull) {
		t.Fatalf("Write(): wanted `%v`; found `%v`", types.ErrDiskFull, err)
	}
	if n != 128 {
		t.Fatalf("Write(): wanted `128` bytes; found `%d`", n)
	}
}
