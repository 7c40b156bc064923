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

// Package pixfmt converts between the canonical RGB888 pixel store and the
// wire formats exchanged with frame buffer consumers.
//
// Canonical pixels are 3 bytes (R, G, B), row-major, with no row padding.
// A wire format packs a group of one or more pixels into a fixed number
// of bytes:
//
//	RGB888  3 bytes / 1 pixel
//	RGB444  2 bytes / 1 pixel, little-endian 12 bit word (byte0 = G<<4|B, byte1 = R)
//	RGB565  2 bytes / 1 pixel, big-endian 16 bit word (R:5 G:6 B:5)
//	YUV422  4 bytes / 2 pixels, U Y0 V Y1
//
// All functions are pure and do not allocate.
package pixfmt

import (
	"fmt"
	"strings"
)

// Format identifies a wire pixel format.
type Format int

const (
	RGB888 Format = iota
	RGB444
	RGB565
	YUV422
)

var formatNames = [...]string{
	RGB888: "RGB888",
	RGB444: "RGB444",
	RGB565: "RGB565",
	YUV422: "YUV422",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat returns the Format named s (e.g "rgb565").
func ParseFormat(s string) (Format, error) {
	for i, n := range formatNames {
		if strings.EqualFold(n, s) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// GroupBytes returns the number of wire bytes in one pixel group.
func (f Format) GroupBytes() int {
	switch f {
	case RGB888:
		return 3
	case RGB444, RGB565:
		return 2
	case YUV422:
		return 4
	}
	return 0
}

// GroupPixels returns the number of pixels in one pixel group.
func (f Format) GroupPixels() int {
	switch f {
	case RGB888, RGB444, RGB565:
		return 1
	case YUV422:
		return 2
	}
	return 0
}

// EncodedLen returns the wire size of the given number of pixels.
// A partial trailing group occupies a whole group.
func (f Format) EncodedLen(pixels int) int {
	gp := f.GroupPixels()
	if gp == 0 || pixels <= 0 {
		return 0
	}
	return (pixels + gp - 1) / gp * f.GroupBytes()
}

// Decode converts src, in format f, into the canonical dst.
// len(dst) must be a multiple of 3 and src must hold exactly the
// encoded size of len(dst)/3 pixels, otherwise nothing is written and
// false is returned.
func Decode(f Format, dst, src []byte) bool {
	if len(dst)%3 != 0 || len(src) != f.EncodedLen(len(dst)/3) {
		return false
	}
	switch f {
	case RGB888:
		copy(dst, src)
	case RGB444:
		decodeRGB444(dst, src)
	case RGB565:
		decodeRGB565(dst, src)
	case YUV422:
		decodeYUV422(dst, src)
	default:
		return false
	}
	return true
}

// Encode converts the canonical src into dst in format f.
// dst must be exactly the encoded size of len(src)/3 pixels.
func Encode(f Format, dst, src []byte) bool {
	if len(src)%3 != 0 || len(dst) != f.EncodedLen(len(src)/3) {
		return false
	}
	switch f {
	case RGB888:
		copy(dst, src)
	case RGB444:
		encodeRGB444(dst, src)
	case RGB565:
		encodeRGB565(dst, src)
	case YUV422:
		encodeYUV422(dst, src)
	default:
		return false
	}
	return true
}

func decodeRGB444(dst, src []byte) {
	for i, o := 0, 0; o < len(dst); i, o = i+2, o+3 {
		dst[o] = src[i+1] << 4
		dst[o+1] = src[i] & 0xF0
		dst[o+2] = src[i] << 4
	}
}

func encodeRGB444(dst, src []byte) {
	for i, o := 0, 0; i < len(src); i, o = i+3, o+2 {
		dst[o] = (src[i+1] & 0xF0) | (src[i+2] >> 4)
		dst[o+1] = src[i] >> 4
	}
}

func decodeRGB565(dst, src []byte) {
	for i, o := 0, 0; o < len(dst); i, o = i+2, o+3 {
		c := uint16(src[i])<<8 | uint16(src[i+1])
		dst[o] = uint8(c>>11) << 3
		dst[o+1] = uint8(c>>5&0x3F) << 2
		dst[o+2] = uint8(c&0x1F) << 3
	}
}

// encodeRGB565 fills the low three bits of the green field from the low
// three bits of the source green channel. Consumers of this wire format
// depend on these exact bytes.
func encodeRGB565(dst, src []byte) {
	for i, o := 0, 0; i < len(src); i, o = i+3, o+2 {
		r, g, b := src[i], src[i+1], src[i+2]
		dst[o] = (r & 0xF8) | (g >> 5)
		dst[o+1] = (g&0x07)<<5 | (b >> 3)
	}
}

func decodeYUV422(dst, src []byte) {
	for i, o := 0, 0; o < len(dst); i, o = i+4, o+6 {
		u, y0, v, y1 := src[i], src[i+1], src[i+2], src[i+3]
		yuvToRGB(dst[o:o+3], y0, u, v)
		if o+3 < len(dst) {
			yuvToRGB(dst[o+3:o+6], y1, u, v)
		}
	}
}

func encodeYUV422(dst, src []byte) {
	for i, o := 0, 0; i < len(src); i, o = i+6, o+4 {
		p0 := src[i : i+3]
		p1 := p0
		if i+6 <= len(src) {
			p1 = src[i+3 : i+6]
		}
		u := chromaU(p0) + chromaU(p1)
		v := chromaV(p0) + chromaV(p1)
		dst[o] = clamp((u >> 9) + 128)
		dst[o+1] = luma(p0)
		dst[o+2] = clamp((v >> 9) + 128)
		dst[o+3] = luma(p1)
	}
}

// yuvToRGB applies the BT.601 studio-swing transform in 8.8 fixed point.
func yuvToRGB(p []byte, y, u, v uint8) {
	c := 298 * (int(y) - 16)
	d := int(u) - 128
	e := int(v) - 128
	p[0] = clamp((c + 409*e + 128) >> 8)
	p[1] = clamp((c - 100*d - 208*e + 128) >> 8)
	p[2] = clamp((c + 516*d + 128) >> 8)
}

func luma(p []byte) uint8 {
	return clamp((66*int(p[0])+129*int(p[1])+25*int(p[2]))>>8 + 16)
}

// chromaU and chromaV return unscaled sums; two are added and divided by 512.
func chromaU(p []byte) int {
	return -38*int(p[0]) - 74*int(p[1]) + 112*int(p[2])
}

func chromaV(p []byte) int {
	return 112*int(p[0]) - 94*int(p[1]) - 18*int(p[2])
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
