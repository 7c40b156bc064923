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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aamcrae/smce/pixfmt"
	"github.com/aamcrae/smce/ring"
)

func TestLayout(t *testing.T) {
	cfg := NewConfig().
		AddPin(5, &Capability{Read: true}, nil).
		AddPin(1, nil, nil).
		AddUART(UARTConfig{RxBuffer: 10, TxBuffer: 3}).
		AddFrameBuffer(FrameBufferConfig{MaxWidth: 3, MaxHeight: 1}).
		clone()
	l := newLayout(cfg)

	assert.Equal(t, hdrSize, l.pins[5])
	assert.Equal(t, hdrSize+pinCellSize, l.pins[1])
	uart := hdrSize + 2*pinCellSize
	assert.Equal(t, []int{uart}, l.uarts)
	assert.Equal(t, []int{uart + uartHdrSize}, l.rxOffs)
	assert.Equal(t, []int{uart + uartHdrSize + ring.Size(10)}, l.txOffs)
	fb := l.txOffs[0] + ring.Size(3)
	assert.Equal(t, []int{fb}, l.fbs)
	assert.Equal(t, fb+fbDescSize+12, l.size)
	assert.Zero(t, l.size%4)
}

func TestRegionFormat(t *testing.T) {
	cfg := NewConfig().
		AddPin(7, &Capability{Read: true}, &Capability{Write: true}).
		AddUART(UARTConfig{}).
		AddUART(UARTConfig{BaudRate: 300}).
		AddFrameBuffer(FrameBufferConfig{Direction: DirectionOut, MaxWidth: 2, MaxHeight: 2}).
		clone()
	r, err := newRegion(cfg, "")
	require.NoError(t, err)
	defer r.close()

	assert.Equal(t, uint32(regionMagic), r.rd(hdrMagic))
	assert.Equal(t, uint32(regionVersion), r.rd(hdrVersion))
	assert.Equal(t, uint32(1), r.rd(hdrPins))
	assert.Equal(t, uint32(2), r.rd(hdrUARTs))
	assert.Equal(t, uint32(1), r.rd(hdrFBs))
	assert.Zero(t, len(r.mem)%os.Getpagesize())

	off, ok := r.pin(7)
	require.True(t, ok)
	assert.Equal(t, uint32(7), r.rd(off+pinNumber))
	assert.Equal(t, uint32(flagExists|flagDigital|flagDigitalRead|flagAnalog|flagAnalogWrite), r.rd(off+pinFlags))
	_, ok = r.pin(8)
	assert.False(t, ok)

	rx, tx, ok := r.uart(1)
	require.True(t, ok)
	assert.Equal(t, DefaultUARTBufferSize, rx.Cap())
	assert.Equal(t, DefaultUARTBufferSize, tx.Cap())
	assert.Equal(t, uint32(300), r.rd(r.lay.uarts[1]+uartBaud))
	assert.Equal(t, uint32(DefaultBaudRate), r.rd(r.lay.uarts[0]+uartBaud))
	_, _, ok = r.uart(2)
	assert.False(t, ok)
	_, _, ok = r.uart(-1)
	assert.False(t, ok)

	// Rings can be attached from the raw memory, as another process would.
	peer := ring.Attach(r.mem[r.lay.rxOffs[1]:])
	require.NotNil(t, peer)
	assert.Equal(t, 3, rx.Write([]byte("abc")))
	assert.Equal(t, 3, peer.Len())

	fb, ok := r.fb(0)
	require.True(t, ok)
	assert.Equal(t, uint32(flagExists|fbDirOut), r.rd(fb+fbFlags))
	assert.Equal(t, uint32(12), r.rd(fb+fbCapacity))
	r.wr(fb+fbWidth, 2)
	r.wr(fb+fbHeight, 2)
	assert.Len(t, r.store(fb), 12)
	assert.True(t, r.writeFrame(fb, pixfmt.RGB888, make([]byte, 12)))
	r.wr(fb+fbHeight, 3)
	assert.Nil(t, r.store(fb))
	assert.False(t, r.readFrame(fb, pixfmt.RGB888, make([]byte, 18)))

	r.setFlag(fb+fbFlags, fbHFlip, true)
	assert.Equal(t, uint32(flagExists|fbDirOut|fbHFlip), r.rd(fb+fbFlags))
	r.setFlag(fb+fbFlags, fbDirOut, false)
	assert.Equal(t, uint32(flagExists|fbHFlip), r.rd(fb+fbFlags))
}

func TestEmptyRegion(t *testing.T) {
	r, err := newRegion(NewConfig().clone(), "")
	require.NoError(t, err)
	assert.Equal(t, os.Getpagesize(), len(r.mem))
	_, ok := r.fb(0)
	assert.False(t, ok)
	require.NoError(t, r.close())
}
