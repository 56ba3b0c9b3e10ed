// Copyright 2026 The armory-image Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package elfimage reads ELF32/ARM ET_EXEC images and places their PT_LOAD
// segments, either directly against a kernel's virtual-to-physical delta or
// into a freshly relocated buffer for position-independent stubs.
package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	ehdrSize = 52
	phdrSize = 32
	shdrSize = 40
	relSize  = 8
	relaSize = 12
)

// Ehdr is the on-disk ELF32 file header.
type Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// Phdr is the on-disk ELF32 program header.
type Phdr struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

// Shdr is the on-disk ELF32 section header.
type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

// Rel is an ELF32 SHT_REL relocation entry.
type Rel struct {
	Offset uint32
	Info   uint32
}

// Type extracts ELF32_R_TYPE(r_info).
func (r Rel) Type() uint32 { return r.Info & 0xff }

// Rela is an ELF32 SHT_RELA relocation entry. The addend is read but never
// consumed: the kickstart and init modules this loader handles use REL.
type Rela struct {
	Offset uint32
	Info   uint32
	Addend int32
}

// Type extracts ELF32_R_TYPE(r_info).
func (r Rela) Type() uint32 { return r.Info & 0xff }

var identPrefix = [7]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}

// File is a validated, opened ELF32/ARM ET_EXEC image ready for placement.
type File struct {
	Ehdr  Ehdr
	Phdrs []Phdr
	Shdrs []Shdr

	r *os.File
}

// Open validates and opens the ELF32/ARM ET_EXEC image at path. The caller
// must Close it.
func Open(path string) (*File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	f, err := newFile(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	return f, nil
}

func newFile(r *os.File) (*File, error) {
	var ehdr Ehdr
	if err := binary.Read(r, binary.LittleEndian, &ehdr); err != nil {
		return nil, fmt.Errorf("reading ELF header: %w", err)
	}

	if !bytes.Equal(ehdr.Ident[:len(identPrefix)], identPrefix[:]) ||
		elf.Type(ehdr.Type) != elf.ET_EXEC ||
		elf.Machine(ehdr.Machine) != elf.EM_ARM ||
		ehdr.Version != uint32(elf.EV_CURRENT) ||
		ehdr.Phentsize != phdrSize {
		return nil, &BadElfError{Reason: "identification, type, machine or program header size mismatch"}
	}

	phdrs := make([]Phdr, ehdr.Phnum)
	if len(phdrs) > 0 {
		if _, err := r.Seek(int64(ehdr.Phoff), io.SeekStart); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, phdrs); err != nil {
			return nil, fmt.Errorf("reading program headers: %w", err)
		}
	}

	shdrs := make([]Shdr, ehdr.Shnum)
	if len(shdrs) > 0 {
		if _, err := r.Seek(int64(ehdr.Shoff), io.SeekStart); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, shdrs); err != nil {
			return nil, fmt.Errorf("reading section headers: %w", err)
		}
	}

	return &File{Ehdr: ehdr, Phdrs: phdrs, Shdrs: shdrs, r: r}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error { return f.r.Close() }

// Entry returns the raw (unrelocated) ELF entry point.
func (f *File) Entry() uint32 { return f.Ehdr.Entry }

func growTo(buf *[]byte, size int) {
	if len(*buf) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, *buf)
	*buf = grown
}

// LoadKernel copies this ELF's PT_LOAD segments into payload (growing it,
// zero-filling BSS as needed) at physical address p_vaddr+kernelDelta,
// mapped to a payload offset via imageBase. This is the kernel placement
// mode: segments land at the kernel's link-time virtual address shifted by
// kernelDelta, not at an arbitrary base. Returns the full memsz extent
// covered, measured from base.
func (f *File) LoadKernel(payload *[]byte, imageBase, base, kernelDelta uint32) (uint32, error) {
	limit := base

	for _, seg := range f.Phdrs {
		if elf.ProgType(seg.Type) != elf.PT_LOAD {
			continue
		}

		physaddr := seg.Vaddr + kernelDelta
		if end := physaddr + seg.Memsz; end > limit {
			limit = end
		}

		growTo(payload, int(limit-imageBase))

		if seg.Filesz == 0 {
			continue
		}
		if _, err := f.r.Seek(int64(seg.Offset), io.SeekStart); err != nil {
			return 0, err
		}
		dst := (*payload)[physaddr-imageBase : physaddr-imageBase+seg.Filesz]
		if _, err := io.ReadFull(f.r, dst); err != nil {
			return 0, fmt.Errorf("reading kernel segment: %w", err)
		}
	}

	return limit - base, nil
}

// LoadRelocatable loads this ELF (kickstart or an init module) into a fresh
// buffer whose physical base is `base`, applies its SHT_REL/SHT_RELA
// relocations against that base, and returns the image bytes, the absolute
// entry point, and the allocation limit (base plus the furthest PT_LOAD
// memsz extent). This is the relocatable-executable mode used for the
// kickstart stub and init modules, which carry their own relocations
// rather than a fixed link-time address.
func (f *File) LoadRelocatable(base uint32) (image []byte, entry uint32, allocLimit uint32, err error) {
	entry = f.Ehdr.Entry + base

	limit, allocationLimit := base, base

	for _, seg := range f.Phdrs {
		if elf.ProgType(seg.Type) != elf.PT_LOAD {
			continue
		}

		physaddr := seg.Paddr + base
		if v := physaddr + seg.Memsz; v > allocationLimit {
			allocationLimit = v
		}
		if v := physaddr + seg.Filesz; v > limit {
			limit = v
		}

		growTo(&image, int(limit-base))

		if seg.Filesz == 0 {
			continue
		}
		if _, err = f.r.Seek(int64(seg.Offset), io.SeekStart); err != nil {
			return nil, 0, 0, err
		}
		dst := image[physaddr-base : physaddr-base+seg.Filesz]
		if _, err = io.ReadFull(f.r, dst); err != nil {
			return nil, 0, 0, fmt.Errorf("reading segment: %w", err)
		}
	}

	growTo(&image, int(allocationLimit-base))

	if err = f.applyRelocations(image, base); err != nil {
		return nil, 0, 0, err
	}

	return image, entry, allocationLimit, nil
}

func (f *File) applyRelocations(image []byte, base uint32) error {
	for _, sec := range f.Shdrs {
		switch elf.SectionType(sec.Type) {
		case elf.SHT_REL:
			if sec.Entsize != relSize || sec.Size%relSize != 0 {
				return &BadRelocationSectionError{Reason: "SHT_REL entry size mismatch"}
			}
			rels := make([]Rel, sec.Size/relSize)
			if _, err := f.r.Seek(int64(sec.Offset), io.SeekStart); err != nil {
				return err
			}
			if err := binary.Read(f.r, binary.LittleEndian, rels); err != nil {
				return fmt.Errorf("reading SHT_REL section: %w", err)
			}
			for _, rel := range rels {
				if err := applyRelocation(image, base, rel.Offset, rel.Type()); err != nil {
					return err
				}
			}

		case elf.SHT_RELA:
			if sec.Entsize != relaSize || sec.Size%relaSize != 0 {
				return &BadRelocationSectionError{Reason: "SHT_RELA entry size mismatch"}
			}
			relas := make([]Rela, sec.Size/relaSize)
			if _, err := f.r.Seek(int64(sec.Offset), io.SeekStart); err != nil {
				return err
			}
			if err := binary.Read(f.r, binary.LittleEndian, relas); err != nil {
				return fmt.Errorf("reading SHT_RELA section: %w", err)
			}
			for _, rela := range relas {
				if err := applyRelocation(image, base, rela.Offset, rela.Type()); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
