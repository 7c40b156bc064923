// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package smce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// Sketch is a compiled sketch artifact and the board it targets.
// The artifact is opaque to the Board; its Engine interprets it.
type Sketch struct {
	Name     string
	FQBN     string
	Artifact []byte
}

// Toolchain compiles sketch sources for a board. Board never invokes a
// Toolchain; it only consumes the Sketch produced.
type Toolchain interface {
	Compile(ctx context.Context, source, fqbn string) (*Sketch, error)
	// BuildLog returns the output of the last compilation.
	BuildLog() string
}

// BuildError is returned by a Toolchain when compilation fails.
type BuildError struct {
	Status int
	Log    string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("sketch build failed with status %d", e.Status)
}

// LoadSketch reads an artifact from a file. Files with a .hex
// extension are decoded from Intel HEX into a flat binary image.
// The sketch is named after the file, without the extension.
func LoadSketch(path, fqbn string) (*Sketch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".hex") {
		data, err = HexToBinary(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return &Sketch{
		Name:     strings.TrimSuffix(filepath.Base(path), ext),
		FQBN:     fqbn,
		Artifact: data,
	}, nil
}

// HexToBinary flattens an Intel HEX image into a binary starting at
// the lowest address present. Gaps are filled with 0xFF.
func HexToBinary(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, err
	}
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return nil, errors.New("hex image has no data")
	}
	start := segs[0].Address
	var end uint32
	for _, s := range segs {
		if s.Address < start {
			start = s.Address
		}
		if e := s.Address + uint32(len(s.Data)); e > end {
			end = e
		}
	}
	return mem.ToBinary(start, end-start, 0xFF), nil
}

// fqbn is a parsed fully qualified board name, vendor:arch:board[:options].
type fqbn struct {
	vendor, arch, board string
	options             string
}

func parseFQBN(s string) (fqbn, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return fqbn{}, fmt.Errorf("malformed board identifier %q", s)
	}
	f := fqbn{vendor: parts[0], arch: parts[1], board: parts[2]}
	if len(parts) == 4 {
		f.options = parts[3]
	}
	return f, nil
}

// compatible reports whether a sketch targeting sk runs on a board
// configured for cfg. An empty cfg accepts any well formed identifier.
func compatible(cfg, sk string) error {
	s, err := parseFQBN(sk)
	if err != nil {
		return err
	}
	if cfg == "" {
		return nil
	}
	c, err := parseFQBN(cfg)
	if err != nil {
		return err
	}
	if c.vendor != s.vendor || c.arch != s.arch || c.board != s.board {
		return fmt.Errorf("sketch targets %s, board is %s", sk, cfg)
	}
	return nil
}
