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

package alloc

import "testing"

func TestPointerMonotonic(t *testing.T) {
	p := New(0x1000)
	p.Advance(4)
	if got := p.Current(); got != 0x1004 {
		t.Fatalf("Current() = %#x, want %#x", got, 0x1004)
	}
	p.AlignTo(0x1000)
	if got := p.Current(); got != 0x2000 {
		t.Fatalf("Current() after align = %#x, want %#x", got, 0x2000)
	}
}

func TestPointerAlignToNoOpWhenAligned(t *testing.T) {
	p := New(0x2000)
	p.AlignTo(0x1000)
	if got := p.Current(); got != 0x2000 {
		t.Errorf("Current() = %#x, want %#x (already aligned)", got, 0x2000)
	}
}

func TestPointerSet(t *testing.T) {
	p := New(0x1000)
	p.Set(0x5000)
	if got := p.Current(); got != 0x5000 {
		t.Errorf("Current() = %#x, want %#x", got, 0x5000)
	}
}
