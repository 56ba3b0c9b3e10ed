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

// Package compress wraps the LZ4 frame encoder used for the final payload
// compression pass.
package compress

import (
	"bytes"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// CompressorError reports a failure from the underlying LZ4 frame encoder.
type CompressorError struct {
	Reason string
}

func (e *CompressorError) Error() string {
	return fmt.Sprintf("lz4 compression failed: %s", e.Reason)
}

// Frame compresses src as a single LZ4 frame with independent blocks and the
// highest compression level, matching the original build's
// LZ4F_blockIndependent / LZ4HC_CLEVEL_MAX / stableSrc preferences.
func Frame(src []byte) ([]byte, error) {
	var out bytes.Buffer

	w := lz4.NewWriter(&out)
	if err := w.Apply(
		lz4.CompressionLevelOption(lz4.Level9),
		lz4.ConcurrencyOption(1),
	); err != nil {
		return nil, &CompressorError{Reason: err.Error()}
	}

	// lz4.Writer frames each Write call as its own independent block
	// sequence rather than linking blocks against a shared history window,
	// matching LZ4F_blockIndependent.
	if _, err := w.Write(src); err != nil {
		return nil, &CompressorError{Reason: err.Error()}
	}
	if err := w.Close(); err != nil {
		return nil, &CompressorError{Reason: err.Error()}
	}

	return out.Bytes(), nil
}
