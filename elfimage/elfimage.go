// Package elfimage implements symex.Image over a standard ELF32 file using
// the standard library's debug/elf. ELF parsing and symbol-table lookup
// are explicitly out-of-scope engineering for this engine — every
// ELF-touching example in the retrieval pack reaches for debug/elf too, so
// there is no third-party parser to prefer here.
package elfimage

import (
	"debug/elf"
	"fmt"
	"sort"

	symex "github.com/symex-project/symex"
)

var _ symex.Image = (*Image)(nil)

// Image loads an ELF32 file's loadable sections and symbol table into
// memory once, then serves reads and symbol lookups against that snapshot.
type Image struct {
	sections []section
	symbols  map[string]uint64
	entry    uint64
}

type section struct {
	name     string
	addr     uint64
	data     []byte
	readOnly bool
}

// Load reads and parses the ELF file at path.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfimage: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("elfimage: %s: only ELF32 is supported, got %s", path, f.Class)
	}

	img := &Image{symbols: make(map[string]uint64), entry: f.Entry}

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Addr == 0 {
			continue
		}
		var data []byte
		if s.Type == elf.SHT_NOBITS {
			data = make([]byte, s.Size)
		} else {
			data, err = s.Data()
			if err != nil {
				return nil, fmt.Errorf("elfimage: read section %s: %w", s.Name, err)
			}
		}
		img.sections = append(img.sections, section{
			name:     s.Name,
			addr:     s.Addr,
			data:     data,
			readOnly: s.Flags&elf.SHF_WRITE == 0,
		})
	}
	sort.Slice(img.sections, func(i, j int) bool { return img.sections[i].addr < img.sections[j].addr })

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("elfimage: read symbols: %w", err)
	}
	for _, sym := range syms {
		if sym.Name != "" {
			img.symbols[sym.Name] = sym.Value
		}
	}

	return img, nil
}

// ReadAt reads len(p) bytes at addr, which must fall entirely within one
// loaded section.
func (img *Image) ReadAt(addr uint64, p []byte) (int, error) {
	for _, s := range img.sections {
		end := s.addr + uint64(len(s.data))
		if addr >= s.addr && addr+uint64(len(p)) <= end {
			copy(p, s.data[addr-s.addr:])
			return len(p), nil
		}
	}
	return 0, fmt.Errorf("elfimage: address %#08x not mapped", addr)
}

// Symbol resolves name to its value in the ELF symbol table.
func (img *Image) Symbol(name string) (uint64, bool) {
	addr, ok := img.symbols[name]
	return addr, ok
}

// Sections returns every loaded section in address order.
func (img *Image) Sections() []symex.Section {
	out := make([]symex.Section, len(img.sections))
	for i, s := range img.sections {
		out[i] = symex.Section{Name: s.name, Addr: s.addr, Size: uint64(len(s.data)), Data: s.data, ReadOnly: s.readOnly}
	}
	return out
}

// Entry returns the ELF entry point.
func (img *Image) Entry() uint64 { return img.entry }
