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
	"math"

	"github.com/aamcrae/smce/pixfmt"
)

// FrameBuffer is a view of one frame buffer. Width and height are in
// pixels; the canonical store holds width*height RGB888 pixels, row-major.
// The flip flags and frequency are metadata for the consumer of the
// frames and do not change how pixels are stored.
type FrameBuffer struct {
	b   *Board
	idx int
}

// with calls f with the descriptor offset while the region is held.
func (f FrameBuffer) with(fn func(r *region, off int)) bool {
	ok := false
	f.b.withRegion(func(r *region) {
		off, exists := r.fb(f.idx)
		if exists {
			ok = true
			fn(r, off)
		}
	})
	return ok
}

func (f FrameBuffer) get(field int) uint32 {
	var v uint32
	f.with(func(r *region, off int) { v = r.rd(off + field) })
	return v
}

func (f FrameBuffer) set(field int, v uint32) {
	f.with(func(r *region, off int) { r.wr(off+field, v) })
}

func (f FrameBuffer) flag(bit uint32) bool {
	return f.get(fbFlags)&bit != 0
}

func (f FrameBuffer) setFlag(bit uint32, on bool) {
	f.with(func(r *region, off int) { r.setFlag(off+fbFlags, bit, on) })
}

// word clamps v to the range of a region word.
func word(v int) uint32 {
	if v < 0 {
		return 0
	}
	if uint64(v) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// Exists returns true if the frame buffer was configured.
func (f FrameBuffer) Exists() bool {
	return f.with(func(*region, int) {})
}

// Direction returns the configured direction of the frame buffer.
func (f FrameBuffer) Direction() Direction {
	if f.flag(fbDirOut) {
		return DirectionOut
	}
	return DirectionIn
}

// Width returns the width in pixels.
func (f FrameBuffer) Width() int { return int(f.get(fbWidth)) }

// Height returns the height in pixels.
func (f FrameBuffer) Height() int { return int(f.get(fbHeight)) }

// SetWidth resizes the canonical store to the new width.
// Negative widths are treated as 0.
func (f FrameBuffer) SetWidth(w int) { f.set(fbWidth, word(w)) }

// SetHeight resizes the canonical store to the new height.
// Negative heights are treated as 0.
func (f FrameBuffer) SetHeight(h int) { f.set(fbHeight, word(h)) }

// MaxPixels returns the largest width*height the store can hold.
func (f FrameBuffer) MaxPixels() int { return int(f.get(fbCapacity)) / 3 }

// NeedsVerticalFlip reports whether consumers should flip frames vertically.
func (f FrameBuffer) NeedsVerticalFlip() bool { return f.flag(fbVFlip) }

// SetNeedsVerticalFlip sets the vertical flip flag.
func (f FrameBuffer) SetNeedsVerticalFlip(v bool) { f.setFlag(fbVFlip, v) }

// NeedsHorizontalFlip reports whether consumers should flip frames horizontally.
func (f FrameBuffer) NeedsHorizontalFlip() bool { return f.flag(fbHFlip) }

// SetNeedsHorizontalFlip sets the horizontal flip flag.
func (f FrameBuffer) SetNeedsHorizontalFlip(v bool) { f.setFlag(fbHFlip, v) }

// Freq returns the requested refresh rate; 0 means unspecified.
func (f FrameBuffer) Freq() int { return int(f.get(fbFreq)) }

// SetFreq sets the requested refresh rate. Negative rates are treated as 0.
func (f FrameBuffer) SetFreq(hz int) { f.set(fbFreq, word(hz)) }

// Write decodes src, in format pf, into the canonical store. It returns
// false, leaving the store untouched, if src is not exactly the encoded
// size of the current dimensions or the frame buffer does not exist.
func (f FrameBuffer) Write(pf pixfmt.Format, src []byte) bool {
	ok := false
	f.with(func(r *region, off int) { ok = r.writeFrame(off, pf, src) })
	return ok
}

// Read encodes the canonical store into dst in format pf. It returns
// false if dst is not exactly the encoded size of the current dimensions
// or the frame buffer does not exist.
func (f FrameBuffer) Read(pf pixfmt.Format, dst []byte) bool {
	ok := false
	f.with(func(r *region, off int) { ok = r.readFrame(off, pf, dst) })
	return ok
}

func (f FrameBuffer) WriteRGB888(src []byte) bool { return f.Write(pixfmt.RGB888, src) }
func (f FrameBuffer) ReadRGB888(dst []byte) bool  { return f.Read(pixfmt.RGB888, dst) }
func (f FrameBuffer) WriteRGB444(src []byte) bool { return f.Write(pixfmt.RGB444, src) }
func (f FrameBuffer) ReadRGB444(dst []byte) bool  { return f.Read(pixfmt.RGB444, dst) }
func (f FrameBuffer) WriteRGB565(src []byte) bool { return f.Write(pixfmt.RGB565, src) }
func (f FrameBuffer) ReadRGB565(dst []byte) bool  { return f.Read(pixfmt.RGB565, dst) }
func (f FrameBuffer) WriteYUV422(src []byte) bool { return f.Write(pixfmt.YUV422, src) }
func (f FrameBuffer) ReadYUV422(dst []byte) bool  { return f.Read(pixfmt.YUV422, dst) }
