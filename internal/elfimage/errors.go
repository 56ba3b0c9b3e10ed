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

import "fmt"

// BadElfError reports an ELF32/ARM identification or header mismatch.
type BadElfError struct {
	Reason string
}

func (e *BadElfError) Error() string {
	return fmt.Sprintf("bad ELF image: %s", e.Reason)
}

// BadRelocationSectionError reports a malformed SHT_REL/SHT_RELA section.
type BadRelocationSectionError struct {
	Reason string
}

func (e *BadRelocationSectionError) Error() string {
	return fmt.Sprintf("bad relocation section: %s", e.Reason)
}

// UnsupportedRelocationError reports an ARM relocation type this loader
// does not implement.
type UnsupportedRelocationError struct {
	Type uint32
}

func (e *UnsupportedRelocationError) Error() string {
	return fmt.Sprintf("unsupported relocation type %d", e.Type)
}
