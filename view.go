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

// View is a non-owning handle onto a Board's peripherals. It is cheap to
// copy. A View, and every view obtained from it, reports that nothing
// exists while the Board has no shared region; operations through it are
// then no-ops. Views may be used concurrently with Board.Stop and
// Board.Close, which wait for in-flight view operations before releasing
// the region.
type View struct {
	b *Board
}

// Valid returns true if the Board is Prepared, Running or Suspended.
func (v View) Valid() bool {
	return v.b.withRegion(func(*region) {})
}

// Pin returns a view of GPIO pin n.
func (v View) Pin(n uint16) Pin {
	return Pin{v.b, n}
}

// UARTChannel returns a view of UART channel ch.
func (v View) UARTChannel(ch int) UARTChannel {
	return UARTChannel{v.b, ch}
}

// FrameBuffer returns a view of frame buffer i.
func (v View) FrameBuffer(i int) FrameBuffer {
	return FrameBuffer{v.b, i}
}
