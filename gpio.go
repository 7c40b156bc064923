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

// access is the outcome of checking a host request against a pin mode.
type access int

const (
	accessAbsent  access = iota // pin or mode not configured
	accessDenied                // mode exists, capability not granted
	accessGranted
)

// mode selects the flag bits of one pin mode.
type mode struct {
	exists, read, write uint32
}

var (
	digitalMode = mode{flagDigital, flagDigitalRead, flagDigitalWrite}
	analogMode  = mode{flagAnalog, flagAnalogRead, flagAnalogWrite}
)

// gate is a pure function of the cell flags and the requested capability bit.
func gate(flags uint32, m mode, bit uint32) access {
	if flags&flagExists == 0 || flags&m.exists == 0 {
		return accessAbsent
	}
	if flags&bit == 0 {
		return accessDenied
	}
	return accessGranted
}

// Pin is a view of one GPIO pin.
type Pin struct {
	b   *Board
	num uint16
}

// Exists returns true if the pin was declared in the configuration.
func (p Pin) Exists() bool {
	ok := false
	p.b.withRegion(func(r *region) { _, ok = r.pin(p.num) })
	return ok
}

// Number returns the pin number.
func (p Pin) Number() uint16 {
	return p.num
}

// Digital returns a view of the pin's digital mode.
func (p Pin) Digital() DigitalPin {
	return DigitalPin{pinMode{p, digitalMode, pinDigital}}
}

// Analog returns a view of the pin's analog mode.
func (p Pin) Analog() AnalogPin {
	return AnalogPin{pinMode{p, analogMode, pinAnalog}}
}

// pinMode holds what the digital and analog views share.
type pinMode struct {
	p     Pin
	m     mode
	value int
}

// check gates bit against the pin's cell and, if the cell exists, calls f
// with the outcome while the region is held.
func (pm pinMode) check(bit uint32, f func(r *region, off int, a access)) access {
	a := accessAbsent
	pm.p.b.withRegion(func(r *region) {
		off, ok := r.pin(pm.p.num)
		if !ok {
			return
		}
		a = gate(r.rd(off+pinFlags), pm.m, bit)
		if f != nil {
			f(r, off, a)
		}
	})
	return a
}

func (pm pinMode) exists() bool {
	return pm.check(pm.m.exists, nil) == accessGranted
}

func (pm pinMode) canRead() bool {
	return pm.check(pm.m.read, nil) == accessGranted
}

func (pm pinMode) canWrite() bool {
	return pm.check(pm.m.write, nil) == accessGranted
}

// get returns the cell content regardless of the read capability.
func (pm pinMode) get() uint32 {
	var v uint32
	pm.check(pm.m.exists, func(r *region, off int, a access) {
		if a != accessAbsent {
			v = r.rd(off + pm.value)
		}
	})
	return v
}

func (pm pinMode) set(v uint32) {
	pm.check(pm.m.write, func(r *region, off int, a access) {
		if a == accessGranted {
			r.wr(off+pm.value, v)
		}
	})
}

// DigitalPin is a view of the digital mode of a pin.
type DigitalPin struct {
	pm pinMode
}

// Exists returns true if the pin has a digital driver.
func (d DigitalPin) Exists() bool { return d.pm.exists() }

// CanRead returns true if the host may observe the value.
func (d DigitalPin) CanRead() bool { return d.pm.canRead() }

// CanWrite returns true if the host may drive the value.
func (d DigitalPin) CanWrite() bool { return d.pm.canWrite() }

// Read returns the current level. It is only meaningful if CanRead is true.
func (d DigitalPin) Read() bool { return d.pm.get() != 0 }

// Write drives the level. It is ignored unless CanWrite is true.
func (d DigitalPin) Write(v bool) {
	var w uint32
	if v {
		w = 1
	}
	d.pm.set(w)
}

// AnalogPin is a view of the analog mode of a pin.
type AnalogPin struct {
	pm pinMode
}

// Exists returns true if the pin has an analog driver.
func (a AnalogPin) Exists() bool { return a.pm.exists() }

// CanRead returns true if the host may observe the sample.
func (a AnalogPin) CanRead() bool { return a.pm.canRead() }

// CanWrite returns true if the host may inject samples.
func (a AnalogPin) CanWrite() bool { return a.pm.canWrite() }

// Read returns the current sample. It is only meaningful if CanRead is true.
func (a AnalogPin) Read() uint16 { return uint16(a.pm.get()) }

// Write injects a sample. It is ignored unless CanWrite is true.
func (a AnalogPin) Write(v uint16) { a.pm.set(uint32(v)) }
