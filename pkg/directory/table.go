// Package directory holds the volume's single flat file table and the
// superblock it is persisted in.
package directory

import (
	"fmt"

	"github.com/weberc2/sanicfs/pkg/alloc"
	"github.com/weberc2/sanicfs/pkg/types"
)

// Entry describes one file. An entry whose `Start` is `types.BlockNil` is
// unused.
type Entry struct {
	Name  string      `json:"name"`
	Start types.Block `json:"start"`
	Size  types.Byte  `json:"size"`
}

func (e *Entry) Used() bool { return e.Start != types.BlockNil }

type Table [types.MaxFiles]Entry

// Referrer reports whether anything still refers to a directory entry.
type Referrer interface {
	Refers(entry int) bool
}

// ValidateName checks that `name` fits an on-disk entry: one to
// `types.MaxFileName-1` printable ASCII bytes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("validating name: empty name: %w", types.ErrInvalidName)
	}
	if len(name) >= types.MaxFileName {
		return fmt.Errorf(
			"validating name `%s`: length `%d` exceeds `%d`: %w",
			name,
			len(name),
			types.MaxFileName-1,
			types.ErrNameTooLong,
		)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c < 0x20 || c > 0x7e {
			return fmt.Errorf(
				"validating name `%q`: byte `%#x` at `%d` is not printable: %w",
				name,
				c,
				i,
				types.ErrInvalidName,
			)
		}
	}
	return nil
}

// Find returns the index of the used entry called `name`.
func (t *Table) Find(name string) (int, error) {
	for i := range t {
		if t[i].Used() && t[i].Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("finding file `%s`: %w", name, types.ErrNotFound)
}

// Create fills the first unused entry with an empty file called `name`. The
// file's first block is allocated only once every other check has passed,
// so a refused create never consumes a block.
func (t *Table) Create(a alloc.Allocator, name string) (int, error) {
	if err := ValidateName(name); err != nil {
		return -1, fmt.Errorf("creating file: %w", err)
	}
	if _, err := t.Find(name); err == nil {
		return -1, fmt.Errorf(
			"creating file `%s`: %w",
			name,
			types.ErrAlreadyExists,
		)
	}
	slot := -1
	for i := range t {
		if !t[i].Used() {
			slot = i
			break
		}
	}
	if slot < 0 {
		return -1, fmt.Errorf(
			"creating file `%s`: %w",
			name,
			types.ErrDirectoryFull,
		)
	}
	start, err := a.Alloc()
	if err != nil {
		return -1, fmt.Errorf("creating file `%s`: %w", name, err)
	}
	t[slot] = Entry{Name: name, Start: start}
	return slot, nil
}

// Delete removes the file called `name` and frees its chain. The entry is
// cleared before the chain is freed, so a failed free leaks blocks rather
// than leaving freed blocks reachable from the table.
func (t *Table) Delete(a alloc.Allocator, name string, refs Referrer) error {
	i, err := t.Find(name)
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if refs != nil && refs.Refers(i) {
		return fmt.Errorf("deleting file `%s`: %w", name, types.ErrFileOpen)
	}
	start := t[i].Start
	t[i] = Entry{}
	if err := a.Free(start); err != nil {
		return fmt.Errorf("deleting file `%s`: %w", name, err)
	}
	return nil
}

// Files returns the used entries in table order.
func (t *Table) Files() []Entry {
	var files []Entry
	for i := range t {
		if t[i].Used() {
			files = append(files, t[i])
		}
	}
	return files
}
