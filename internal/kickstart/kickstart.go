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

// Package kickstart stages the relocated kickstart stub: a small ELF that
// decompresses the main payload and jumps to the kernel. It loads the
// stub's relocatable image, patches its fixed parameter words, and appends
// an optional table of preloaded init-module entry points.
package kickstart

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"

	"github.com/f-secure-foundry/armory-image/internal/alloc"
	"github.com/f-secure-foundry/armory-image/internal/elfimage"
)

// Params are the values the kickstart stub needs to find and decompress the
// main payload and hand off to the kernel.
type Params struct {
	MetadataVaddr    uint32
	KernelEntryPhys  uint32
	CompressedBase   uint32
	ImageBase        uint32
	InitModulePaths  []string
}

// Result is the staged kickstart image plus the cursor left just past its
// highest allocation, so the caller can continue placing data after it.
type Result struct {
	Base  uint32
	Image []byte
	Entry uint32
	Alloc uint32
}

// five fixed parameter words the stub reads at its own load base: metadata
// address, kernel entry, compressed image address, image base, and the
// init-module table address (0 when absent).
const (
	offMetadata   = 0
	offKernel     = 4
	offCompressed = 8
	offImageBase  = 12
	offModuleTab  = 16
	headerWords   = 5
)

// Stage loads path as a relocatable ELF at base, patches its parameter
// header, and appends the init-module table and data when params names any.
func Stage(path string, base uint32, params Params) (*Result, error) {
	f, err := elfimage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening kickstart %q: %w", path, err)
	}
	defer f.Close()

	image, entry, allocLimit, err := f.LoadRelocatable(base)
	if err != nil {
		return nil, fmt.Errorf("staging kickstart %q: %w", path, err)
	}

	putU32(image, offMetadata, params.MetadataVaddr)
	putU32(image, offKernel, params.KernelEntryPhys)
	putU32(image, offCompressed, params.CompressedBase)
	putU32(image, offImageBase, params.ImageBase)

	ptr := alloc.New(allocLimit)

	if len(params.InitModulePaths) == 0 {
		putU32(image, offModuleTab, 0)
		return &Result{Base: base, Image: image, Entry: entry, Alloc: ptr.Current()}, nil
	}

	if err := attachInitModules(&image, base, ptr, params.InitModulePaths); err != nil {
		return nil, err
	}

	return &Result{Base: base, Image: image, Entry: entry, Alloc: ptr.Current()}, nil
}

// attachInitModules lays out the word table of init-module entry points
// (terminated by a zero word) and the init modules' own relocated images,
// immediately after the kickstart stub's own allocation.
func attachInitModules(image *[]byte, base uint32, ptr *alloc.Pointer, paths []string) error {
	ptr.AlignTo(4)
	table := ptr.Current()
	putU32(*image, offModuleTab, table)

	tableSize := uint32(4 * (len(paths) + 1))
	growTo(image, int(ptr.Current()-base+tableSize))
	ptr.Advance(tableSize)

	for index, path := range paths {
		ptr.AlignTo(8)
		modBase := ptr.Current()

		f, err := elfimage.Open(path)
		if err != nil {
			return fmt.Errorf("opening init module %q: %w", path, err)
		}
		data, entry, allocLimit, err := f.LoadRelocatable(modBase)
		f.Close()
		if err != nil {
			return fmt.Errorf("staging init module %q: %w", path, err)
		}

		glog.Infof("init module %s: at %#08x, limit %#08x, entry %#08x", path, modBase, allocLimit, entry)

		growTo(image, int(allocLimit-base))
		copy((*image)[modBase-base:], data)

		putU32(*image, int(table-base)+index*4, entry)

		ptr.Set(allocLimit)
	}

	putU32(*image, int(table-base)+len(paths)*4, 0)

	return nil
}

func growTo(buf *[]byte, size int) {
	if len(*buf) >= size {
		return
	}
	grown := make([]byte, size)
	copy(grown, *buf)
	*buf = grown
}

func putU32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:offset+4], v)
}
