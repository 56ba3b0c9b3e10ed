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

// Package layout implements the central image layout algorithm: it walks a
// parsed blueprint, places each module's bytes against a monotonically
// growing physical allocation pointer, emits the FreeBSD loader metadata
// table (with deferred fixups), compresses the result, and stages the
// relocated kickstart.
package layout

import (
	"bytes"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/u-root/u-root/pkg/dt"

	"github.com/f-secure-foundry/armory-image/internal/alloc"
	"github.com/f-secure-foundry/armory-image/internal/blueprint"
	"github.com/f-secure-foundry/armory-image/internal/compress"
	"github.com/f-secure-foundry/armory-image/internal/elfimage"
	"github.com/f-secure-foundry/armory-image/internal/kickstart"
	"github.com/f-secure-foundry/armory-image/internal/metadata"
)

// KernelVaddr is the fixed kernel link-virtual base for ARM FreeBSD
// kernels, against which kernelDelta is computed.
const KernelVaddr uint32 = 0xC0000000

const pageSize = 0x1000
const kernelAlign = 0x100000

type moduleType int

const (
	elfKernel moduleType = iota
	binaryModule
)

var moduleTypes = map[string]moduleType{
	"elf kernel": elfKernel,
	"md_image":   binaryModule,
}

// Result is the finalized, compressed image layout and staged kickstart,
// ready for the ELF emitter.
type Result struct {
	ImageBase         uint32
	ImageDisplacement uint32
	Payload           []byte // compressed
	KickstartBase     uint32
	Kickstart         []byte
	AllocationPointer uint32
	KickstartEntry    uint32
}

// image carries the single-pass mutable layout state.
type image struct {
	imageBase        uint32
	alloc            *alloc.Pointer
	kernelDelta      uint32
	kernelEntryPoint uint32
	payload          []byte
	meta             metadata.Writer

	// metadataEnd is the allocation cursor captured right after the
	// metadata block is written but before the following 4 KiB alignment
	// bump, i.e. metadataBase+metadataSize. The KERNEND fixup resolves
	// against this pinned value rather than the live cursor, since by the
	// time fixups run the cursor has moved on to the kickstart region.
	metadataEnd uint32
}

// Build runs the complete layout algorithm for bp and returns the finalized,
// compressed result plus staged kickstart.
func Build(bp *blueprint.Blueprint) (*Result, error) {
	img := &image{
		imageBase: bp.ImageBase,
		alloc:     alloc.New(bp.ImageBase),
	}

	glog.Infof("image base address: %#08x", img.imageBase)

	for _, mod := range bp.Modules {
		if err := img.placeModule(mod); err != nil {
			return nil, fmt.Errorf("module %q: %w", mod.Name, err)
		}
	}

	img.meta.WriteRecord(metadata.End, nil)

	metadataBase := img.alloc.Current()
	metadataSize := uint32(img.meta.Len())

	glog.Infof("metadata: at %#08x, size %#x", metadataBase, metadataSize)

	growTo(&img.payload, int(metadataBase+metadataSize-img.imageBase))
	copy(img.payload[metadataBase-img.imageBase:], img.meta.Bytes())

	img.alloc.Advance(metadataSize)
	img.metadataEnd = img.alloc.Current()
	img.alloc.AlignTo(pageSize)

	growTo(&img.payload, int(img.alloc.Current()-img.imageBase))

	glog.Infof("end of uncompressed image: %#08x", img.alloc.Current())

	img.meta.ApplyFixups(img.payload[metadataBase-img.imageBase:])

	uncompressedSize := uint32(len(img.payload))
	compressed, err := compress.Frame(img.payload)
	if err != nil {
		return nil, err
	}

	imageDisplacement := uncompressedSize - uint32(len(compressed))
	glog.Infof("compressed image at %#08x, %d bytes (%d%% of original)",
		img.imageBase+imageDisplacement, len(compressed), uint64(len(compressed))*100/uint64(uncompressedSize))

	kickstartBase := img.alloc.Current()

	ks, err := kickstart.Stage(bp.Kickstart, kickstartBase, kickstart.Params{
		MetadataVaddr:   metadataBase - img.kernelDelta,
		KernelEntryPhys: img.kernelEntryPoint + img.kernelDelta,
		CompressedBase:  img.imageBase + imageDisplacement,
		ImageBase:       img.imageBase,
		InitModulePaths: bp.InitModules,
	})
	if err != nil {
		return nil, err
	}
	img.alloc.Set(ks.Alloc)

	return &Result{
		ImageBase:         img.imageBase,
		ImageDisplacement: imageDisplacement,
		Payload:           compressed,
		KickstartBase:     kickstartBase,
		Kickstart:         ks.Image,
		AllocationPointer: img.alloc.Current(),
		KickstartEntry:    ks.Entry,
	}, nil
}

// placeModule places one blueprint module's bytes and emits its NAME/TYPE/
// ADDR/SIZE metadata records plus any attached metadata directives.
func (img *image) placeModule(mod blueprint.Module) error {
	img.meta.WriteRecord(metadata.Name, nullTerminated(mod.Name))
	img.meta.WriteRecord(metadata.Type, nullTerminated(mod.Type))

	mt, ok := moduleTypes[mod.Type]
	if !ok {
		return &UnknownModuleTypeError{Type: mod.Type}
	}

	if mt == elfKernel {
		img.alloc.AlignTo(kernelAlign)
		img.kernelDelta = img.alloc.Current() - KernelVaddr
		glog.Infof("kernel physical base: %#08x, virtual base: %#08x, delta: %#08x", img.alloc.Current(), KernelVaddr, img.kernelDelta)
	}

	base := img.alloc.Current()
	var size uint32

	switch mt {
	case elfKernel:
		f, err := elfimage.Open(mod.FileName)
		if err != nil {
			return fmt.Errorf("opening kernel %q: %w", mod.FileName, err)
		}
		defer f.Close()

		img.kernelEntryPoint = f.Entry()

		size, err = f.LoadKernel(&img.payload, img.imageBase, base, img.kernelDelta)
		if err != nil {
			return err
		}

	case binaryModule:
		data, err := os.ReadFile(mod.FileName)
		if err != nil {
			return fmt.Errorf("reading module %q: %w", mod.FileName, err)
		}
		size = uint32(len(data))
		growTo(&img.payload, int(base+size-img.imageBase))
		copy(img.payload[base-img.imageBase:], data)
	}

	img.alloc.Set(base + size)
	img.alloc.AlignTo(pageSize)

	glog.Infof("%s module %s (from %s): starts at %#08x, length %#08x", mod.Type, mod.Name, mod.FileName, base, size)

	img.meta.WriteRecord32(metadata.Addr, base-img.kernelDelta)
	img.meta.WriteRecord32(metadata.Size, size)

	for _, md := range mod.Metadata {
		if err := img.placeMetadataEntry(md); err != nil {
			return err
		}
	}

	return nil
}

func (img *image) placeMetadataEntry(md blueprint.Metadata) error {
	switch md.Kind {
	case blueprint.DTB:
		data, err := os.ReadFile(md.Value)
		if err != nil {
			return fmt.Errorf("reading DTB %q: %w", md.Value, err)
		}
		if _, err := dt.ReadFDT(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("invalid device tree blob %q: %w", md.Value, err)
		}

		dtbBase := img.alloc.Current()
		glog.Infof("  DTB data: at %#08x (virt %#08x), size %#x", dtbBase, dtbBase-img.kernelDelta, len(data))

		growTo(&img.payload, int(dtbBase+uint32(len(data))-img.imageBase))
		copy(img.payload[dtbBase-img.imageBase:], data)

		img.alloc.Advance(uint32(len(data)))
		img.alloc.AlignTo(pageSize)

		img.meta.WriteRecord32(metadata.MDDtbp, dtbBase-img.kernelDelta)

	case blueprint.Kernend:
		img.meta.WriteRecordDeferred(metadata.MDKernend, 4, func(dst []byte) {
			value := img.metadataEnd - img.kernelDelta
			glog.Infof("fixing up KERNEND: %#08x", value)
			putU32(dst, 0, value)
		})

	case blueprint.Environment:
		block := environmentBlock(md.Env)
		envBase := img.alloc.Current()

		glog.Infof("  environment: at %#08x (virt %#08x), size %#x", envBase, envBase-img.kernelDelta, len(block))

		growTo(&img.payload, int(envBase+uint32(len(block))-img.imageBase))
		copy(img.payload[envBase-img.imageBase:], block)

		img.alloc.Advance(uint32(len(block)))
		img.alloc.AlignTo(pageSize)

		img.meta.WriteRecord32(metadata.MDEnvp, envBase-img.kernelDelta)

	case blueprint.Howto:
		v, err := blueprint.ParseHowto(md.Value)
		if err != nil {
			return err
		}
		img.meta.WriteRecord32(metadata.MDHowto, v)
	}

	return nil
}

// environmentBlock renders ENVIRONMENT pairs as "key=value\0" per pair,
// plus one trailing "\0" terminating the block.
func environmentBlock(pairs []blueprint.EnvPair) []byte {
	var buf bytes.Buffer
	for _, p := range pairs {
		buf.WriteString(p.Key)
		buf.WriteByte('=')
		buf.WriteString(p.Value)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

func nullTerminated(s string) []byte {
	return append([]byte(s), 0)
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
	buf[offset] = byte(v)
	buf[offset+1] = byte(v >> 8)
	buf[offset+2] = byte(v >> 16)
	buf[offset+3] = byte(v >> 24)
}
