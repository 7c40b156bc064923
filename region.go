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
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/aamcrae/smce/pixfmt"
	"github.com/aamcrae/smce/ring"
)

// Region header.
const (
	regionMagic   = 0x45434D53 // "SMCE" little endian
	regionVersion = 1

	hdrMagic   = 0
	hdrVersion = 4
	hdrPins    = 8
	hdrUARTs   = 12
	hdrFBs     = 16
	hdrSize    = 32
)

// Pin cell: pin number, flags, digital value, analog value.
const (
	pinNumber   = 0
	pinFlags    = 4
	pinDigital  = 8
	pinAnalog   = 12
	pinCellSize = 16
)

// Pin flags.
const (
	flagExists = 1 << iota
	flagDigital
	flagDigitalRead
	flagDigitalWrite
	flagAnalog
	flagAnalogRead
	flagAnalogWrite
)

// UART cell: flags, baud rate, then the rx and tx rings.
const (
	uartFlags   = 0
	uartBaud    = 4
	uartHdrSize = 16
)

// Frame buffer descriptor, followed by the canonical pixel store.
const (
	fbFlags    = 0
	fbWidth    = 4
	fbHeight   = 8
	fbFreq     = 12
	fbCapacity = 16
	fbDescSize = 32
)

// Frame buffer flags (flagExists is shared).
const (
	fbVFlip = 1 << (iota + 1)
	fbHFlip
	fbDirOut
)

// layout records where each configured peripheral lives in the region.
// Cells are placed in configuration order.
type layout struct {
	size   int
	pins   map[uint16]int // pin number to cell offset
	uarts  []int
	rxOffs []int
	txOffs []int
	fbs    []int
}

func newLayout(cfg *Config) *layout {
	l := &layout{pins: make(map[uint16]int)}
	off := hdrSize
	for _, p := range cfg.Pins {
		l.pins[p] = off
		off += pinCellSize
	}
	for _, u := range cfg.UARTChannels {
		l.uarts = append(l.uarts, off)
		off += uartHdrSize
		l.rxOffs = append(l.rxOffs, off)
		off += ring.Size(u.RxBuffer)
		l.txOffs = append(l.txOffs, off)
		off += ring.Size(u.TxBuffer)
	}
	for _, f := range cfg.FrameBuffers {
		l.fbs = append(l.fbs, off)
		off += fbDescSize + align4(f.MaxWidth*f.MaxHeight*3)
	}
	l.size = off
	return l
}

// region is the shared memory block holding every peripheral cell.
type region struct {
	file *os.File
	mem  []byte
	lay  *layout
	rx   []*ring.Ring
	tx   []*ring.Ring
}

// newRegion maps and formats a region for cfg, which must have its
// defaults filled in. If path is not empty the region is backed by
// that file so that other local processes can map it.
func newRegion(cfg *Config, path string) (*region, error) {
	lay := newLayout(cfg)
	pg := os.Getpagesize()
	size := (lay.size + pg - 1) / pg * pg
	r := &region{lay: lay}
	var err error
	if path == "" {
		r.mem, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("map region: %v", err)
		}
	} else {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			return nil, err
		}
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		r.mem, err = unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, fmt.Errorf("%s: %v", path, err)
		}
		r.file = f
	}
	r.format(cfg)
	return r, nil
}

// format writes the header and initial contents of every cell.
func (r *region) format(cfg *Config) {
	r.wr(hdrVersion, regionVersion)
	r.wr(hdrPins, uint32(len(cfg.Pins)))
	r.wr(hdrUARTs, uint32(len(cfg.UARTChannels)))
	r.wr(hdrFBs, uint32(len(cfg.FrameBuffers)))
	drivers := make(map[uint16]GpioDriver)
	for _, d := range cfg.GpioDrivers {
		drivers[d.Pin] = d
	}
	for _, p := range cfg.Pins {
		off := r.lay.pins[p]
		flags := uint32(flagExists)
		if d, ok := drivers[p]; ok {
			flags |= modeFlags(d.Digital, flagDigital, flagDigitalRead, flagDigitalWrite)
			flags |= modeFlags(d.Analog, flagAnalog, flagAnalogRead, flagAnalogWrite)
		}
		r.wr(off+pinNumber, uint32(p))
		r.wr(off+pinFlags, flags)
	}
	for i, u := range cfg.UARTChannels {
		off := r.lay.uarts[i]
		r.wr(off+uartFlags, flagExists)
		r.wr(off+uartBaud, uint32(u.BaudRate))
		r.rx = append(r.rx, ring.Init(r.mem[r.lay.rxOffs[i]:], u.RxBuffer))
		r.tx = append(r.tx, ring.Init(r.mem[r.lay.txOffs[i]:], u.TxBuffer))
	}
	for i, f := range cfg.FrameBuffers {
		off := r.lay.fbs[i]
		flags := uint32(flagExists)
		if f.Direction == DirectionOut {
			flags |= fbDirOut
		}
		r.wr(off+fbCapacity, uint32(f.MaxWidth*f.MaxHeight*3))
		r.wr(off+fbFlags, flags)
	}
	// Publish the magic last; a reader mapping the file checks it first.
	r.wr(hdrMagic, regionMagic)
}

func modeFlags(c *Capability, exists, read, write uint32) uint32 {
	if c == nil {
		return 0
	}
	f := exists
	if c.Read {
		f |= read
	}
	if c.Write {
		f |= write
	}
	return f
}

// close unmaps the region and removes any backing file.
func (r *region) close() error {
	err := unix.Munmap(r.mem)
	r.mem = nil
	if r.file != nil {
		name := r.file.Name()
		r.file.Close()
		os.Remove(name)
	}
	return err
}

// pin returns the cell offset of a configured pin.
func (r *region) pin(n uint16) (int, bool) {
	off, ok := r.lay.pins[n]
	return off, ok
}

// uart returns the rings of a configured channel.
func (r *region) uart(ch int) (rx, tx *ring.Ring, ok bool) {
	if ch < 0 || ch >= len(r.rx) {
		return nil, nil, false
	}
	return r.rx[ch], r.tx[ch], true
}

// fb returns the descriptor offset of a configured frame buffer.
func (r *region) fb(i int) (int, bool) {
	if i < 0 || i >= len(r.lay.fbs) {
		return 0, false
	}
	return r.lay.fbs[i], true
}

// setFlag sets or clears bits in the flags word at offs.
// Flag words are only modified by the host.
func (r *region) setFlag(offs int, bit uint32, on bool) {
	f := r.rd(offs)
	if on {
		f |= bit
	} else {
		f &^= bit
	}
	r.wr(offs, f)
}

// store returns the canonical pixel store of the frame buffer at off,
// sized for its current dimensions, or nil if they exceed the reservation.
func (r *region) store(off int) []byte {
	n := uint64(r.rd(off+fbWidth)) * uint64(r.rd(off+fbHeight)) * 3
	if n > uint64(r.rd(off+fbCapacity)) {
		return nil
	}
	base := off + fbDescSize
	return r.mem[base : base+int(n)]
}

// writeFrame decodes src into the store of the frame buffer at off.
func (r *region) writeFrame(off int, f pixfmt.Format, src []byte) bool {
	s := r.store(off)
	if s == nil {
		return false
	}
	return pixfmt.Decode(f, s, src)
}

// readFrame encodes the store of the frame buffer at off into dst.
func (r *region) readFrame(off int, f pixfmt.Format, dst []byte) bool {
	s := r.store(off)
	if s == nil {
		return false
	}
	return pixfmt.Encode(f, dst, s)
}

// rd reads one 32 bit word from the region
func (r *region) rd(offs int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&r.mem[offs])))
}

// wr writes one 32 bit word to the region
func (r *region) wr(offs int, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&r.mem[offs])), v)
}

func align4(n int) int {
	return (n + 3) &^ 3
}
