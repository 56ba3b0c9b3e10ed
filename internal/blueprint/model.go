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

// Package blueprint holds the in-memory value tree produced by parsing an
// armory-image blueprint file, and the parser that builds it.
package blueprint

// MetadataKind distinguishes the variants a Module's metadata entries can
// take. Order within a Module's metadata list is significant and preserved.
type MetadataKind int

const (
	// DTB attaches a device tree blob to a module. Value holds the DTB file path.
	DTB MetadataKind = iota
	// Kernend requests a deferred MODINFOMD_KERNEND record.
	Kernend
	// Howto attaches a MODINFOMD_HOWTO record. Value holds the literal to parse.
	Howto
	// Environment attaches an ordered key/value environment block.
	Environment
)

// EnvPair is one ENVIRONMENT SET key/value line, in the order it appeared.
type EnvPair struct {
	Key   string
	Value string
}

// Metadata is one METADATA entry within a Module, tagged by Kind.
type Metadata struct {
	Kind  MetadataKind
	Value string // DTB path, or HOWTO literal
	Env   []EnvPair
}

// Module is one MODULE directive: a name, a type string ("elf kernel",
// "md_image", ...), the host file backing it, and its ordered metadata.
type Module struct {
	Name     string
	Type     string
	FileName string
	Metadata []Metadata
}

// Blueprint is the full parsed value tree for one image build.
type Blueprint struct {
	ImageBase   uint32
	Kickstart   string
	InitModules []string // not populated by the parser; set programmatically by callers that preload modules
	Modules     []Module
	Compress    bool // carried but unused; compression is unconditional
}
