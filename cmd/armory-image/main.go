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

// armory-image builds a compressed FreeBSD/ARM boot image from a blueprint
// file describing its kernel, modules and kickstart stub.
//
// Usage:
//
//	armory-image --output /path/to/image.bin /path/to/blueprint.txt
package main

import (
	"flag"

	"github.com/golang/glog"

	"github.com/f-secure-foundry/armory-image/internal/build"
)

var output = flag.String("output", "", "Path to write the built image to")

func main() {
	flag.Parse()

	if err := build.Main(build.Opts{
		BlueprintPath: flag.Arg(0),
		OutputPath:    *output,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
