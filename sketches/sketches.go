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

// Package sketches provides native sketches for exercising a Board
// without a toolchain. Register installs them on a NativeEngine under
// the names of the constants below.
package sketches

import (
	"context"

	"github.com/aamcrae/smce"
	"github.com/aamcrae/smce/pixfmt"
)

// Sketch names.
const (
	Noop   = "noop"
	Pins   = "pins"
	UART   = "uart"
	Invert = "invert"
)

// Pins used by the pins sketch.
const (
	InputPin  = 0
	OutputPin = 2
)

// Register installs every sketch in this package on e.
func Register(e *smce.NativeEngine) *smce.NativeEngine {
	return e.
		Register(Noop, NewNoop).
		Register(Pins, NewPins).
		Register(UART, NewUART).
		Register(Invert, NewInvert)
}

// Engine returns a NativeEngine holding every sketch in this package.
func Engine() *smce.NativeEngine {
	return Register(smce.NewNativeEngine())
}

// NewNoop returns a sketch that does nothing.
func NewNoop() smce.Program {
	return &smce.ProgramFuncs{}
}

// NewPins returns a sketch that drives OutputPin to the inverse of InputPin.
func NewPins() smce.Program {
	return &smce.ProgramFuncs{
		LoopFunc: func(ctx context.Context, d *smce.Device) error {
			d.DigitalWrite(OutputPin, !d.DigitalRead(InputPin))
			return nil
		},
	}
}

// NewUART returns a sketch that echoes channel 0 rx back out on tx.
func NewUART() smce.Program {
	buf := make([]byte, 256)
	return &smce.ProgramFuncs{
		LoopFunc: func(ctx context.Context, d *smce.Device) error {
			n := min(d.SerialAvailable(0), d.SerialAvailableForWrite(0), len(buf))
			if n == 0 {
				return nil
			}
			n = d.SerialRead(0, buf[:n])
			d.SerialWrite(0, buf[:n])
			return nil
		},
	}
}

// NewInvert returns a sketch that copies frame buffer 0 to frame
// buffer 1 with every colour component inverted. Frames larger than
// either buffer can hold are skipped.
func NewInvert() smce.Program {
	var frame []byte
	return &smce.ProgramFuncs{
		LoopFunc: func(ctx context.Context, d *smce.Device) error {
			w, h := d.FrameSize(0)
			if w == 0 || h == 0 {
				return nil
			}
			if uint64(w)*uint64(h) > uint64(min(d.FrameCapacity(0), d.FrameCapacity(1))) {
				return nil
			}
			n := pixfmt.RGB888.EncodedLen(w * h)
			if cap(frame) < n {
				frame = make([]byte, n)
			}
			frame = frame[:n]
			if !d.ReadFrame(0, pixfmt.RGB888, frame) {
				return nil
			}
			for i := range frame {
				frame[i] = ^frame[i]
			}
			d.SetFrameSize(1, w, h)
			d.WriteFrame(1, pixfmt.RGB888, frame)
			return nil
		},
	}
}
