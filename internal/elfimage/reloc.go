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
	"debug/elf"
	"encoding/binary"
)

// applyRelocation applies the small ARM relocation subset a rigid base
// shift needs, against a loaded image buffer. R_ARM_ABS32 adds base to the
// stored little-endian
// word, tolerating unaligned offsets via the byte-wise encoding/binary
// accessors. R_ARM_REL32, R_ARM_CALL and R_ARM_PREL31 are PC-relative and
// need no fixup after a rigid base shift; any other type is rejected.
func applyRelocation(image []byte, base, offset, rtype uint32) error {
	switch elf.R_ARM(rtype) {
	case elf.R_ARM_ABS32:
		v := binary.LittleEndian.Uint32(image[offset : offset+4])
		binary.LittleEndian.PutUint32(image[offset:offset+4], v+base)

	case elf.R_ARM_REL32, elf.R_ARM_CALL, elf.R_ARM_PREL31:
		// no-op

	default:
		return &UnsupportedRelocationError{Type: rtype}
	}

	return nil
}
