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

package compress

import (
	"bytes"
	"testing"

	"github.com/pierrec/lz4/v4"
)

func TestFrameRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 256)

	compressed, err := Frame(src)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("Frame returned empty output")
	}

	var out bytes.Buffer
	r := lz4.NewReader(bytes.NewReader(compressed))
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("decompressing: %v", err)
	}

	if !bytes.Equal(out.Bytes(), src) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", out.Len(), len(src))
	}
}

func TestFrameEmptyInput(t *testing.T) {
	compressed, err := Frame(nil)
	if err != nil {
		t.Fatalf("Frame(nil): %v", err)
	}

	var out bytes.Buffer
	r := lz4.NewReader(bytes.NewReader(compressed))
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("decompressing: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("got %d bytes, want 0", out.Len())
	}
}
