package types

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestDeviceErr_Is(t *testing.T) {
	err := fmt.Errorf(
		"reading superblock: %w",
		&DeviceErr{Op: "read", Block: 3, Err: io.ErrUnexpectedEOF},
	)
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("errors.Is(err, ErrDevice): wanted `true`; found `false`")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf(
			"errors.Is(err, io.ErrUnexpectedEOF): wanted `true`; found `false`",
		)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(err, ErrNotFound): wanted `false`; found `true`")
	}

	wanted := "reading superblock: device: read block `3`: unexpected EOF"
	if found := err.Error(); found != wanted {
		t.Fatalf("Error(): wanted `%s`; found `%s`", wanted, found)
	}
}

func TestNewDeviceErr(t *testing.T) {
	err := NewDeviceErr("close", io.ErrClosedPipe)
	wanted := "device: close: io: read/write on closed pipe"
	if found := err.Error(); found != wanted {
		t.Fatalf("Error(): wanted `%s`; found `%s`", wanted, found)
	}
}

func TestLinkString(t *testing.T) {
	for _, testCase := range []struct {
		link   Link
		wanted string
	}{
		{LinkFree, "free"},
		{LinkTerminator, "terminator"},
		{Link(17), "17"},
	} {
		if found := testCase.link.String(); found != testCase.wanted {
			t.Fatalf(
				"Link(%d).String(): wanted `%s`; found `%s`",
				testCase.link,
				testCase.wanted,
				found,
			)
		}
	}
}
