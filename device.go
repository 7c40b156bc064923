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
	"context"
	"sync"
	"time"

	"github.com/aamcrae/smce/pixfmt"
)

// Device is the sketch's side of the shared region. Unlike host views
// it is not gated by capabilities; it only ignores peripherals that were
// not configured. Every call holds the execution gate for the duration
// of its memory access, which makes each call a safe point for Suspend.
// After the Board stops, every call returns a zero value.
type Device struct {
	gate  sync.Mutex
	reg   *region // nil once stopped
	epoch time.Time
}

func newDevice(r *region) *Device {
	return &Device{reg: r, epoch: time.Now()}
}

// enter acquires the gate and returns the region, or nil (with the gate
// released) if the Board has stopped.
func (d *Device) enter() *region {
	d.gate.Lock()
	if d.reg == nil {
		d.gate.Unlock()
		return nil
	}
	return d.reg
}

func (d *Device) leave() {
	d.gate.Unlock()
}

func (d *Device) safepoint() bool {
	r := d.enter()
	if r == nil {
		return false
	}
	d.leave()
	return true
}

func (d *Device) pinValue(pin uint16, m mode, field int) uint32 {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	off, ok := r.pin(pin)
	if !ok || r.rd(off+pinFlags)&m.exists == 0 {
		return 0
	}
	return r.rd(off + field)
}

func (d *Device) setPinValue(pin uint16, m mode, field int, v uint32) {
	r := d.enter()
	if r == nil {
		return
	}
	defer d.leave()
	off, ok := r.pin(pin)
	if !ok || r.rd(off+pinFlags)&m.exists == 0 {
		return
	}
	r.wr(off+field, v)
}

// DigitalRead returns the level of a pin.
func (d *Device) DigitalRead(pin uint16) bool {
	return d.pinValue(pin, digitalMode, pinDigital) != 0
}

// DigitalWrite sets the level of a pin.
func (d *Device) DigitalWrite(pin uint16, v bool) {
	var w uint32
	if v {
		w = 1
	}
	d.setPinValue(pin, digitalMode, pinDigital, w)
}

// AnalogRead returns the sample on a pin.
func (d *Device) AnalogRead(pin uint16) uint16 {
	return uint16(d.pinValue(pin, analogMode, pinAnalog))
}

// AnalogWrite sets the sample on a pin.
func (d *Device) AnalogWrite(pin uint16, v uint16) {
	d.setPinValue(pin, analogMode, pinAnalog, uint32(v))
}

// SerialAvailable returns the number of bytes waiting on rx.
func (d *Device) SerialAvailable(ch int) int {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	rx, _, ok := r.uart(ch)
	if !ok {
		return 0
	}
	return rx.Len()
}

// SerialAvailableForWrite returns the free space on tx.
func (d *Device) SerialAvailableForWrite(ch int) int {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	_, tx, ok := r.uart(ch)
	if !ok {
		return 0
	}
	return tx.Free()
}

// SerialPeek returns the next rx byte without consuming it.
func (d *Device) SerialPeek(ch int) (byte, bool) {
	r := d.enter()
	if r == nil {
		return 0, false
	}
	defer d.leave()
	rx, _, ok := r.uart(ch)
	if !ok {
		return 0, false
	}
	return rx.Front()
}

// SerialRead consumes up to len(p) bytes from rx.
func (d *Device) SerialRead(ch int, p []byte) int {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	rx, _, ok := r.uart(ch)
	if !ok {
		return 0
	}
	return rx.Read(p)
}

// SerialWrite appends as much of p to tx as fits.
func (d *Device) SerialWrite(ch int, p []byte) int {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	_, tx, ok := r.uart(ch)
	if !ok {
		return 0
	}
	return tx.Write(p)
}

// FrameSize returns the dimensions of a frame buffer.
func (d *Device) FrameSize(i int) (w, h int) {
	r := d.enter()
	if r == nil {
		return 0, 0
	}
	defer d.leave()
	off, ok := r.fb(i)
	if !ok {
		return 0, 0
	}
	return int(r.rd(off + fbWidth)), int(r.rd(off + fbHeight))
}

// FrameCapacity returns the largest width*height a frame buffer can hold.
func (d *Device) FrameCapacity(i int) int {
	r := d.enter()
	if r == nil {
		return 0
	}
	defer d.leave()
	off, ok := r.fb(i)
	if !ok {
		return 0
	}
	return int(r.rd(off+fbCapacity)) / 3
}

// SetFrameSize sets the dimensions of a frame buffer.
// Negative dimensions are treated as 0.
func (d *Device) SetFrameSize(i, w, h int) {
	r := d.enter()
	if r == nil {
		return
	}
	defer d.leave()
	if off, ok := r.fb(i); ok {
		r.wr(off+fbWidth, word(w))
		r.wr(off+fbHeight, word(h))
	}
}

// ReadFrame encodes a frame buffer into dst.
func (d *Device) ReadFrame(i int, f pixfmt.Format, dst []byte) bool {
	r := d.enter()
	if r == nil {
		return false
	}
	defer d.leave()
	off, ok := r.fb(i)
	return ok && r.readFrame(off, f, dst)
}

// WriteFrame decodes src into a frame buffer.
func (d *Device) WriteFrame(i int, f pixfmt.Format, src []byte) bool {
	r := d.enter()
	if r == nil {
		return false
	}
	defer d.leave()
	off, ok := r.fb(i)
	return ok && r.writeFrame(off, f, src)
}

// Millis returns the milliseconds since the sketch started.
func (d *Device) Millis() uint32 {
	return uint32(time.Since(d.epoch) / time.Millisecond)
}

// Delay sleeps for dur without holding the gate. It returns false if
// ctx is done first.
func (d *Device) Delay(ctx context.Context, dur time.Duration) bool {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
