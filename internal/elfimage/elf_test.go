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

package elfimage

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildELF assembles a minimal ELF32/ARM ET_EXEC for use as a test fixture.
// When rel is non-empty the image also carries a null section header and one
// SHT_REL section holding rel.
func buildELF(t *testing.T, entry uint32, segs []Phdr, segData [][]byte, rel []Rel) string {
	t.Helper()

	const (
		ehdrLen = ehdrSize
	)
	phoff := uint32(ehdrLen)
	relOff := phoff + uint32(len(segs))*phdrSize

	dataOff := relOff
	if len(rel) > 0 {
		dataOff += uint32(len(rel)) * relSize
	}

	var buf bytes.Buffer

	ehdr := Ehdr{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_ARM),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     phoff,
		Shoff:     0,
		Ehsize:    ehdrLen,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
		Shentsize: shdrSize,
		Shnum:     0,
	}
	copy(ehdr.Ident[:], identPrefix[:])

	if len(rel) > 0 {
		ehdr.Shoff = dataOff + uint32(sumLen(segData))
		ehdr.Shnum = 2
		ehdr.Shstrndx = 0
	}

	if err := binary.Write(&buf, binary.LittleEndian, ehdr); err != nil {
		t.Fatalf("writing ehdr: %v", err)
	}

	offset := dataOff
	for i := range segs {
		segs[i].Offset = offset
		segs[i].Filesz = uint32(len(segData[i]))
		offset += uint32(len(segData[i]))
		if err := binary.Write(&buf, binary.LittleEndian, segs[i]); err != nil {
			t.Fatalf("writing phdr: %v", err)
		}
	}

	var relOffset uint32
	if len(rel) > 0 {
		relOffset = relOff
		if err := binary.Write(&buf, binary.LittleEndian, rel); err != nil {
			t.Fatalf("writing rel: %v", err)
		}
	}

	for _, d := range segData {
		buf.Write(d)
	}

	if len(rel) > 0 {
		// Null section header, then the REL section header.
		var null Shdr
		if err := binary.Write(&buf, binary.LittleEndian, null); err != nil {
			t.Fatalf("writing null shdr: %v", err)
		}
		relShdr := Shdr{
			Type:    uint32(elf.SHT_REL),
			Offset:  relOffset,
			Size:    uint32(len(rel)) * relSize,
			Entsize: relSize,
		}
		if err := binary.Write(&buf, binary.LittleEndian, relShdr); err != nil {
			t.Fatalf("writing rel shdr: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "test.elf")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func sumLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}

func TestOpenRejectsBadIdent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.elf")
	if err := os.WriteFile(path, make([]byte, 64), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error opening non-ELF file")
	}
}

func TestLoadKernel(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	path := buildELF(t, 0xC0000000, []Phdr{
		{Type: uint32(elf.PT_LOAD), Vaddr: 0xC0000000, Paddr: 0xC0000000, Memsz: uint32(len(data))},
	}, [][]byte{data}, nil)

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if got := f.Entry(); got != 0xC0000000 {
		t.Errorf("Entry() = %#x, want 0xC0000000", got)
	}

	var payload []byte
	var imageBase uint32 = 0x90000000
	kernelDelta := imageBase - uint32(0xC0000000)
	base := imageBase

	size, err := f.LoadKernel(&payload, imageBase, base, kernelDelta)
	if err != nil {
		t.Fatalf("LoadKernel: %v", err)
	}
	if size != uint32(len(data)) {
		t.Errorf("size = %d, want %d", size, len(data))
	}
	if !bytes.Equal(payload, data) {
		t.Errorf("payload = %v, want %v", payload, data)
	}
}

func TestLoadRelocatableAppliesAbs32(t *testing.T) {
	// A single word to be relocated, at offset 0 within the segment.
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 0x1000)

	path := buildELF(t, 0x0, []Phdr{
		{Type: uint32(elf.PT_LOAD), Vaddr: 0, Paddr: 0, Memsz: 4},
	}, [][]byte{data}, []Rel{
		{Offset: 0, Info: uint32(elf.R_ARM_ABS32)},
	})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	const base = 0x20000000
	image, entry, allocLimit, err := f.LoadRelocatable(base)
	if err != nil {
		t.Fatalf("LoadRelocatable: %v", err)
	}
	if entry != base {
		t.Errorf("entry = %#x, want %#x", entry, base)
	}
	if allocLimit != base+4 {
		t.Errorf("allocLimit = %#x, want %#x", allocLimit, base+4)
	}

	got := binary.LittleEndian.Uint32(image[0:4])
	want := uint32(0x1000 + base)
	if got != want {
		t.Errorf("relocated word = %#x, want %#x", got, want)
	}
}

func TestLoadRelocatableRejectsUnknownRelocation(t *testing.T) {
	data := make([]byte, 4)
	path := buildELF(t, 0x0, []Phdr{
		{Type: uint32(elf.PT_LOAD), Vaddr: 0, Paddr: 0, Memsz: 4},
	}, [][]byte{data}, []Rel{
		{Offset: 0, Info: 0xff}, // bogus relocation type
	})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if _, _, _, err := f.LoadRelocatable(0); err == nil {
		t.Fatal("expected error for unsupported relocation type")
	}
}
