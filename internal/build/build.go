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

// Package build wires the blueprint parser, the layout engine and the ELF
// emitter into a single entry point for the command-line front end.
package build

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/f-secure-foundry/armory-image/internal/blueprint"
	"github.com/f-secure-foundry/armory-image/internal/elfwriter"
	"github.com/f-secure-foundry/armory-image/internal/layout"
)

// Opts collects the command-line front end's parsed flags.
type Opts struct {
	BlueprintPath string
	OutputPath    string
}

// Main parses the blueprint at opts.BlueprintPath, lays out the image, and
// writes the resulting ELF32/ARM binary to opts.OutputPath.
func Main(opts Opts) error {
	if opts.BlueprintPath == "" {
		return fmt.Errorf("no blueprint file given")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("no output file given")
	}

	bp, err := blueprint.Parse(opts.BlueprintPath)
	if err != nil {
		return fmt.Errorf("parsing blueprint %q: %w", opts.BlueprintPath, err)
	}

	glog.Infof("blueprint %q: %d module(s), kickstart %q", opts.BlueprintPath, len(bp.Modules), bp.Kickstart)

	res, err := layout.Build(bp)
	if err != nil {
		return fmt.Errorf("building image: %w", err)
	}

	segs := []elfwriter.Segment{
		{Vaddr: res.ImageBase + res.ImageDisplacement, Data: res.Payload},
		{Vaddr: res.KickstartBase, Data: res.Kickstart},
	}

	if err := elfwriter.Write(opts.OutputPath, res.KickstartEntry, segs); err != nil {
		return fmt.Errorf("writing output %q: %w", opts.OutputPath, err)
	}

	glog.Infof("wrote %q: entry %#08x, allocation pointer %#08x", opts.OutputPath, res.KickstartEntry, res.AllocationPointer)

	return nil
}
