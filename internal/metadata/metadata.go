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

// Package metadata builds the word-aligned FreeBSD loader metadata stream
// (MODINFO_* records) and tracks fixups to be resolved once the final
// layout is known.
package metadata

import "encoding/binary"

// FreeBSD loader metadata record types.
const (
	End  uint32 = 0
	Name uint32 = 1
	Type uint32 = 2
	Addr uint32 = 3
	Size uint32 = 4

	MetadataFlag uint32 = 0x8000

	MDHowto   uint32 = MetadataFlag | 0x0001
	MDEnvp    uint32 = MetadataFlag | 0x0002
	MDKernend uint32 = MetadataFlag | 0x0004
	MDDtbp    uint32 = MetadataFlag | 0x0010
)

// Fixup is a deferred write into the metadata stream, resolved after the
// final layout is known but before compression. Writer receives a slice
// into the final payload buffer starting at the reserved word offset.
type Fixup struct {
	ByteOffset int
	Writer     func(dst []byte)
}

// Writer accumulates the metadata word stream (as its raw little-endian
// byte encoding, always a multiple of 4 bytes long) and its deferred
// fixups.
type Writer struct {
	buf    []byte
	Fixups []Fixup
}

// Len returns the size of the metadata stream in bytes.
func (w *Writer) Len() int { return len(w.buf) }

// WriteRecord appends a (type, size, data) record, data zero-padded to a
// word boundary.
func (w *Writer) WriteRecord(recType uint32, data []byte) {
	w.appendU32(recType)
	w.appendU32(uint32(len(data)))

	if len(data) == 0 {
		return
	}

	padded := (len(data) + 3) &^ 3
	pos := len(w.buf)
	w.buf = append(w.buf, make([]byte, padded)...)
	copy(w.buf[pos:], data)
}

// WriteRecord32 is the fixed-size convenience form of WriteRecord.
func (w *Writer) WriteRecord32(recType uint32, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	w.WriteRecord(recType, buf[:])
}

// WriteRecordDeferred reserves space for a size-byte record and registers a
// fixup to be invoked later with a slice into the final payload buffer.
func (w *Writer) WriteRecordDeferred(recType uint32, size int, writer func(dst []byte)) {
	w.appendU32(recType)
	w.appendU32(uint32(size))

	if size == 0 {
		return
	}

	padded := (size + 3) &^ 3
	byteOffset := len(w.buf)
	w.Fixups = append(w.Fixups, Fixup{ByteOffset: byteOffset, Writer: writer})
	w.buf = append(w.buf, make([]byte, padded)...)
}

// Bytes returns the accumulated metadata stream.
func (w *Writer) Bytes() []byte { return w.buf }

// ApplyFixups invokes each registered fixup with a slice into dst (the
// metadata region of the final payload buffer). Callers must run this
// after the final payload size is known and before compression.
func (w *Writer) ApplyFixups(dst []byte) {
	for _, fx := range w.Fixups {
		fx.Writer(dst[fx.ByteOffset:])
	}
}

func (w *Writer) appendU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf = append(w.buf, buf[:]...)
}
