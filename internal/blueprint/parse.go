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

package blueprint

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads and parses a blueprint file at path.
func Parse(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blueprint: %w", err)
	}
	defer f.Close()

	bp, err := ParseReader(f)
	if err != nil {
		return nil, fmt.Errorf("blueprint: %s: %w", path, err)
	}
	return bp, nil
}

// lexerState mirrors Blueprint.cpp's character-class state machine.
type lexerState int

const (
	stateNormal lexerState = iota
	stateString
	stateEscaped
	stateComment
)

// parserState mirrors Blueprint::ParsingContext's grammar state.
type parserState int

const (
	stateRoot parserState = iota
	stateMetadata
	stateValues
)

type metadataValueShape int

const (
	shapeNone metadataValueShape = iota
	shapeSingle
	shapeMultiple
)

var metadataDirectives = map[string]struct {
	kind  MetadataKind
	shape metadataValueShape
}{
	"DTB":         {DTB, shapeSingle},
	"KERNEND":     {Kernend, shapeNone},
	"HOWTO":       {Howto, shapeSingle},
	"ENVIRONMENT": {Environment, shapeMultiple},
}

// ParseReader tokenizes and parses blueprint text, line by line, reproducing
// the quoting/escaping/comment rules of the C++ lexer: `;` starts a
// comment to end-of-line, `"..."` is a quoted token with `\` as a
// one-character escape, and whitespace otherwise separates tokens.
func ParseReader(r io.Reader) (*Blueprint, error) {
	bp := &Blueprint{}
	ps := stateRoot

	br := bufio.NewReader(r)

	ls := stateNormal
	var tokens []string
	var buf strings.Builder
	bufActive := false

	flushLine := func() error {
		if bufActive {
			tokens = append(tokens, buf.String())
			buf.Reset()
			bufActive = false
		}
		if len(tokens) == 0 {
			return nil
		}
		line := tokens
		tokens = nil
		return bp.processLine(line, &ps)
	}

	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ls {
		case stateNormal:
			switch {
			case ch == '"':
				bufActive = true
				ls = stateString
			case ch == ';':
				ls = stateComment
			case unicode.IsSpace(ch):
				if bufActive {
					tokens = append(tokens, buf.String())
					buf.Reset()
					bufActive = false
				}
				if ch == '\n' && len(tokens) != 0 {
					if err := flushLine(); err != nil {
						return nil, err
					}
				}
			default:
				buf.WriteRune(ch)
				bufActive = true
			}

		case stateString:
			switch ch {
			case '\\':
				ls = stateEscaped
			case '"':
				ls = stateNormal
			default:
				buf.WriteRune(ch)
			}

		case stateEscaped:
			buf.WriteRune(ch)
			ls = stateString

		case stateComment:
			if ch == '\n' {
				if err := flushLine(); err != nil {
					return nil, err
				}
				ls = stateNormal
			}
		}
	}

	if ls != stateNormal {
		return nil, fmt.Errorf("end of file reached before closing quote")
	}
	if bufActive || len(tokens) != 0 {
		return nil, fmt.Errorf("no newline at the end of file")
	}
	if ps != stateRoot {
		return nil, fmt.Errorf("end of file reached before matching END")
	}

	return bp, nil
}

func (bp *Blueprint) processLine(line []string, ps *parserState) error {
	control := line[0]
	rest := line[1:]

	switch *ps {
	case stateRoot:
		switch control {
		case "MODULE":
			if len(rest) < 3 {
				return fmt.Errorf("MODULE: name, type and file name expected")
			}
			mod := Module{Name: rest[0], Type: rest[1], FileName: rest[2]}
			rest = rest[3:]
			if len(rest) != 0 {
				if rest[0] != "METADATA" {
					return fmt.Errorf("'METADATA' or end of line expected")
				}
				*ps = stateMetadata
			}
			bp.Modules = append(bp.Modules, mod)

		case "IMAGE_BASE":
			if len(rest) == 0 {
				return fmt.Errorf("IMAGE_BASE: number expected")
			}
			v, err := strconv.ParseUint(rest[0], 0, 32)
			if err != nil {
				return fmt.Errorf("IMAGE_BASE: %w", err)
			}
			bp.ImageBase = uint32(v)

		case "KICKSTART":
			if len(rest) == 0 {
				return fmt.Errorf("KICKSTART: file name expected")
			}
			bp.Kickstart = rest[0]

		default:
			return fmt.Errorf("invalid token in root context: %q", control)
		}

	case stateMetadata:
		if control == "END" {
			*ps = stateRoot
			return nil
		}

		directive, ok := metadataDirectives[control]
		if !ok {
			return fmt.Errorf("invalid token in metadata context: %q", control)
		}

		mod := &bp.Modules[len(bp.Modules)-1]
		mod.Metadata = append(mod.Metadata, Metadata{Kind: directive.kind})
		md := &mod.Metadata[len(mod.Metadata)-1]

		switch directive.shape {
		case shapeNone:
			// nothing to consume
		case shapeSingle:
			if len(rest) == 0 {
				return fmt.Errorf("%s: value expected", control)
			}
			md.Value = rest[0]
		case shapeMultiple:
			*ps = stateValues
		}

	case stateValues:
		if control == "END" {
			*ps = stateMetadata
			return nil
		}
		if control != "SET" {
			return fmt.Errorf("invalid token in environment context: %q", control)
		}
		if len(rest) < 2 {
			return fmt.Errorf("SET: key and value expected")
		}
		mod := &bp.Modules[len(bp.Modules)-1]
		md := &mod.Metadata[len(mod.Metadata)-1]
		md.Env = append(md.Env, EnvPair{Key: rest[0], Value: rest[1]})
	}

	return nil
}

// ParseHowto parses a HOWTO literal using C-style base-auto rules:
// a "0x" prefix selects hex, a leading "0" selects octal, otherwise decimal.
func ParseHowto(literal string) (uint32, error) {
	v, err := strconv.ParseUint(literal, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid HOWTO literal %q: %w", literal, err)
	}
	return uint32(v), nil
}
