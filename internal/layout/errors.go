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

package layout

import "fmt"

// UnknownModuleTypeError reports a MODULE directive naming a type string
// not in the fixed { "elf kernel", "md_image" } table.
type UnknownModuleTypeError struct {
	Type string
}

func (e *UnknownModuleTypeError) Error() string {
	return fmt.Sprintf("unknown module type %q", e.Type)
}
