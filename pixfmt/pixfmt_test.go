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

package pixfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		in   []byte
		want []byte
	}{
		{"rgb444 1x1", RGB444, []byte{0xBC, 0x0A}, []byte{0xA0, 0xB0, 0xC0}},
		{"rgb444 2x2", RGB444,
			[]byte{0x23, 0xF1, 0x56, 0xF4, 0x89, 0xF7, 0xBC, 0xFA},
			[]byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70, 0x80, 0x90, 0xA0, 0xB0, 0xC0}},
		{"rgb565 1x1", RGB565, []byte{0xBC, 0x0A}, []byte{0xB8, 0x80, 0x50}},
		{"rgb565 2x2", RGB565,
			[]byte{0x23, 0xF1, 0x56, 0xF4, 0x89, 0xF7, 0xBC, 0xFA},
			[]byte{0x20, 0x7C, 0x88, 0x50, 0xDC, 0xA0, 0x88, 0x3C, 0xB8, 0xB8, 0x9C, 0xD0}},
		{"yuv422 1x2", YUV422, []byte{0xBC, 0x0A, 0xAB, 0x1F}, []byte{0x3E, 0x00, 0x72, 0x56, 0x00, 0x8A}},
		{"yuv422 2x2", YUV422,
			[]byte{0x23, 0xF1, 0x56, 0xF4, 0x89, 0xF7, 0xBC, 0xFA},
			[]byte{0xC3, 0xFF, 0x4A, 0xC6, 0xFF, 0x4E, 0xFF, 0xD9, 0xFF, 0xFF, 0xDC, 0xFF}},
		{"rgb888", RGB888, []byte{1, 2, 3, 4, 5, 6}, []byte{1, 2, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, len(tt.want))
			require.True(t, Decode(tt.f, out, tt.in))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		in   []byte
		want []byte
	}{
		{"rgb444 1x1", RGB444, []byte{0xAD, 0xBE, 0xCF}, []byte{0xBC, 0x0A}},
		{"rgb444 2x2", RGB444,
			[]byte{0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F, 0x7A, 0x8B, 0x9C, 0xAD, 0xBE, 0xCF},
			[]byte{0x23, 0x01, 0x56, 0x04, 0x89, 0x07, 0xBC, 0x0A}},
		{"rgb565 1x1", RGB565, []byte{0xAD, 0xBE, 0xCF}, []byte{0xAD, 0xD9}},
		{"rgb565 2x2", RGB565,
			[]byte{0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F, 0x7A, 0x8B, 0x9C, 0xAD, 0xBE, 0xCF},
			[]byte{0x19, 0x67, 0x4A, 0xCD, 0x7C, 0x73, 0xAD, 0xD9}},
		{"yuv422 1x2", YUV422, []byte{0xAD, 0xD9, 0xAB, 0xD8, 0xAB, 0xD6}, []byte{0x7F, 0xBA, 0x80, 0xB2}},
		{"yuv422 2x2", YUV422,
			[]byte{0x1A, 0x2B, 0x3C, 0x4D, 0x5E, 0x6F, 0x7A, 0x8B, 0x9C, 0xAD, 0xBE, 0xCF},
			[]byte{0x89, 0x32, 0x77, 0x5E, 0x89, 0x84, 0x77, 0xB0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, len(tt.want))
			require.True(t, Encode(tt.f, out, tt.in))
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSizeMismatch(t *testing.T) {
	for _, f := range []Format{RGB888, RGB444, RGB565, YUV422} {
		dst := []byte{7, 7, 7, 7, 7, 7}
		src := make([]byte, f.EncodedLen(2)+1)
		assert.False(t, Decode(f, dst, src), f.String())
		assert.Equal(t, []byte{7, 7, 7, 7, 7, 7}, dst, "%s: dst modified", f)

		out := make([]byte, 1)
		assert.False(t, Encode(f, out, []byte{1, 2, 3, 4, 5, 6}), f.String())
		assert.False(t, Encode(f, make([]byte, f.EncodedLen(2)), []byte{1, 2, 3, 4}), f.String())
	}
}

func TestEncodedLen(t *testing.T) {
	assert.Equal(t, 3, RGB888.EncodedLen(1))
	assert.Equal(t, 2, RGB444.EncodedLen(1))
	assert.Equal(t, 8, RGB565.EncodedLen(4))
	assert.Equal(t, 4, YUV422.EncodedLen(2))
	assert.Equal(t, 8, YUV422.EncodedLen(3))
	assert.Equal(t, 0, YUV422.EncodedLen(0))
	assert.Equal(t, 0, Format(42).EncodedLen(4))
}

func TestYUV422OddWidth(t *testing.T) {
	// The padding pixel of the last group must not be written back.
	dst := []byte{0, 0, 0, 9, 9, 9}
	require.True(t, Decode(YUV422, dst[:3], []byte{0x80, 0x10, 0x80, 0xFF}))
	assert.Equal(t, []byte{0, 0, 0, 9, 9, 9}, dst)

	out := make([]byte, 4)
	require.True(t, Encode(YUV422, out, []byte{0, 0, 0}))
	assert.Equal(t, out[1], out[3])
}

func TestRGB888Lossless(t *testing.T) {
	src := make([]byte, 3*256)
	for i := range src {
		src[i] = byte(i * 7)
	}
	wire := make([]byte, RGB888.EncodedLen(256))
	require.True(t, Encode(RGB888, wire, src))
	back := make([]byte, len(src))
	require.True(t, Decode(RGB888, back, wire))
	assert.Equal(t, src, back)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("rgb565")
	require.NoError(t, err)
	assert.Equal(t, RGB565, f)
	_, err = ParseFormat("bgr233")
	assert.Error(t, err)
	assert.Equal(t, "Format(9)", Format(9).String())
}
