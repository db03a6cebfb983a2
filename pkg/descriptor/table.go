// Package descriptor tracks the open files of a mounted volume. Each
// descriptor pairs a directory entry with its own byte offset.
package descriptor

import (
	"encoding/json"
	"fmt"

	"github.com/weberc2/sanicfs/pkg/types"
)

// Unused marks a descriptor slot that is not open.
const Unused = -1

type Descriptor struct {
	Entry  int        `json:"entry"`
	Offset types.Byte `json:"offset"`
}

func (d *Descriptor) Used() bool { return d.Entry != Unused }

type Table [types.MaxDescriptors]Descriptor

func NewTable() Table {
	var t Table
	t.Reset()
	return t
}

// Reset closes every descriptor.
func (t *Table) Reset() {
	for i := range t {
		t[i] = Descriptor{Entry: Unused}
	}
}

// Open claims the first unused slot for `entry` with offset 0.
func (t *Table) Open(entry int) (int, error) {
	for fd := range t {
		if !t[fd].Used() {
			t[fd] = Descriptor{Entry: entry}
			return fd, nil
		}
	}
	return -1, fmt.Errorf(
		"opening descriptor for entry `%d`: %w",
		entry,
		types.ErrTooManyOpen,
	)
}

func (t *Table) Close(fd int) error {
	if _, err := t.Get(fd); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	t[fd] = Descriptor{Entry: Unused}
	return nil
}

// Get returns the open descriptor `fd`.
func (t *Table) Get(fd int) (*Descriptor, error) {
	if fd < 0 || fd >= len(t) || !t[fd].Used() {
		return nil, fmt.Errorf(
			"descriptor `%d`: %w",
			fd,
			types.ErrInvalidDescriptor,
		)
	}
	return &t[fd], nil
}

// Refers reports whether any open descriptor points at `entry`.
func (t *Table) Refers(entry int) bool {
	for i := range t {
		if t[i].Entry == entry && t[i].Used() {
			return true
		}
	}
	return false
}

// Count returns the number of open descriptors.
func (t *Table) Count() int {
	var count int
	for i := range t {
		if t[i].Used() {
			count++
		}
	}
	return count
}

// Debug renders the open descriptors, keyed by fd, as JSON.
func (t *Table) Debug() string {
	open := map[int]Descriptor{}
	for fd := range t {
		if t[fd].Used() {
			open[fd] = t[fd]
		}
	}
	data, err := json.Marshal(open)
	if err != nil {
		panic(fmt.Sprintf(
			"ERROR failed to marshal descriptor table `%#v` to JSON: %v",
			open,
			err,
		))
	}
	return string(data)
}
