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

package elfwriter

import (
	"bytes"
	"debug/elf"
	"path/filepath"
	"testing"
)

func TestWriteProducesWellFormedELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.elf")

	segs := []Segment{
		{Vaddr: 0x90000000, Data: bytes.Repeat([]byte{0x11}, 100)},
		{Vaddr: 0x90100000, Data: bytes.Repeat([]byte{0x22}, 50)},
	}

	if err := Write(path, 0x90100000, segs); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := elf.Open(path)
	if err != nil {
		t.Fatalf("debug/elf.Open: %v", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		t.Errorf("Class = %v, want ELFCLASS32", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		t.Errorf("Data = %v, want ELFDATA2LSB", f.Data)
	}
	if f.Machine != elf.EM_ARM {
		t.Errorf("Machine = %v, want EM_ARM", f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		t.Errorf("Type = %v, want ET_EXEC", f.Type)
	}
	if f.Entry != 0x90100000 {
		t.Errorf("Entry = %#x, want %#x", f.Entry, 0x90100000)
	}

	if len(f.Progs) != len(segs) {
		t.Fatalf("len(Progs) = %d, want %d", len(f.Progs), len(segs))
	}

	for i, want := range segs {
		got := f.Progs[i]
		if got.Vaddr != uint64(want.Vaddr) {
			t.Errorf("segment %d Vaddr = %#x, want %#x", i, got.Vaddr, want.Vaddr)
		}
		if got.Filesz != uint64(len(want.Data)) {
			t.Errorf("segment %d Filesz = %d, want %d", i, got.Filesz, len(want.Data))
		}
		if got.Off%fileAlign != 0 {
			t.Errorf("segment %d file offset %#x not %#x-aligned", i, got.Off, fileAlign)
		}

		data := make([]byte, got.Filesz)
		if _, err := got.ReadAt(data, 0); err != nil {
			t.Fatalf("reading segment %d data: %v", i, err)
		}
		if !bytes.Equal(data, want.Data) {
			t.Errorf("segment %d data mismatch", i)
		}
	}
}

func TestWriteRejectsUnwritablePath(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing-dir", "out.elf"), 0, nil)
	if err == nil {
		t.Fatal("expected error writing to a nonexistent directory")
	}
}
