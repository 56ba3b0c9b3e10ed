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

// Package elfwriter emits the final output image as an ELF32/ARM ET_EXEC
// binary carrying two PT_LOAD segments: the compressed payload and the
// staged kickstart stub.
package elfwriter

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	ehdrSize = 52
	phdrSize = 32

	fileAlign = 0x1000
)

// Segment is one PT_LOAD segment destined for the output image.
type Segment struct {
	Vaddr uint32
	Data  []byte
}

// Write emits an ELF32/ARM ET_EXEC image to path containing segs (in
// order) and entry as its entry point. Segment file offsets are placed on
// fileAlign boundaries starting just past the program header table.
func Write(path string, entry uint32, segs []Segment) error {
	headerSize := ehdrSize + phdrSize*len(segs)
	firstOffset := alignUp(uint32(headerSize), fileAlign)

	offsets := make([]uint32, len(segs))
	offset := firstOffset
	for i, seg := range segs {
		offsets[i] = offset
		offset = alignUp(offset+uint32(len(seg.Data)), fileAlign)
	}

	var buf bytes.Buffer

	ehdr := elfHeader{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_ARM),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
	}
	copy(ehdr.Ident[:], []byte{0x7f, 'E', 'L', 'F',
		byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})

	if err := binary.Write(&buf, binary.LittleEndian, ehdr); err != nil {
		return fmt.Errorf("writing ELF header: %w", err)
	}

	for i, seg := range segs {
		phdr := elfProgHeader{
			Type:   uint32(elf.PT_LOAD),
			Offset: offsets[i],
			Vaddr:  seg.Vaddr,
			Paddr:  seg.Vaddr,
			Filesz: uint32(len(seg.Data)),
			Memsz:  uint32(len(seg.Data)),
			Flags:  uint32(elf.PF_R | elf.PF_W | elf.PF_X),
			Align:  fileAlign,
		}
		if err := binary.Write(&buf, binary.LittleEndian, phdr); err != nil {
			return fmt.Errorf("writing program header %d: %w", i, err)
		}
	}

	for i, seg := range segs {
		padTo(&buf, offsets[i])
		buf.Write(seg.Data)
	}

	return os.WriteFile(path, buf.Bytes(), 0644)
}

type elfHeader struct {
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

type elfProgHeader struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

func padTo(buf *bytes.Buffer, offset uint32) {
	if n := int(offset) - buf.Len(); n > 0 {
		buf.Write(make([]byte, n))
	}
}
