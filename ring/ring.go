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

// Package ring implements a fixed-capacity single-producer, single-consumer
// byte queue laid out in caller-supplied memory, so that the producer and
// consumer may live in different execution contexts sharing that memory.
//
// The memory holds a 16 byte header followed by the data area:
//
//	0  capacity
//	4  read index (owned by the consumer)
//	8  write index (owned by the producer)
//	12 reserved
//
// Indices run over [0, 2*capacity) so that a full ring and an empty ring
// are distinguishable for any capacity. Each side publishes its index with
// a release store after touching the data area, and loads the other side's
// index with an acquire load before touching it.
//
// The ring never overwrites unread data and never blocks.
package ring

import (
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the number of bytes preceding the data area.
const HeaderSize = 16

const (
	offCap = 0
	offRd  = 4
	offWr  = 8
)

// MaxCapacity is the largest supported capacity.
const MaxCapacity = 1 << 30

// Size returns the number of bytes of memory required for a ring of the
// given capacity, rounded up to a 32 bit boundary.
func Size(capacity int) int {
	return HeaderSize + (capacity+3)&^3
}

// Ring is a view onto ring memory. It does not own the memory.
type Ring struct {
	mem  []byte
	cap  uint32
	data []byte
}

// Init formats mem as an empty ring of the given capacity and returns a view onto it.
// mem must be 32 bit aligned and at least Size(capacity) bytes.
func Init(mem []byte, capacity int) *Ring {
	if capacity <= 0 || capacity > MaxCapacity {
		panic("ring: invalid capacity")
	}
	if len(mem) < Size(capacity) {
		panic("ring: memory too small")
	}
	store(mem, offRd, 0)
	store(mem, offWr, 0)
	store(mem, offCap, uint32(capacity))
	return Attach(mem)
}

// Attach returns a view onto ring memory previously formatted by Init,
// or nil if mem does not hold a ring.
func Attach(mem []byte) *Ring {
	if len(mem) < HeaderSize {
		return nil
	}
	c := load(mem, offCap)
	if c == 0 || c > MaxCapacity || len(mem) < Size(int(c)) {
		return nil
	}
	return &Ring{mem: mem, cap: c, data: mem[HeaderSize : HeaderSize+int(c)]}
}

// Cap returns the fixed capacity in bytes.
func (r *Ring) Cap() int {
	return int(r.cap)
}

// Len returns the number of unread bytes.
func (r *Ring) Len() int {
	return int(r.used(load(r.mem, offRd), load(r.mem, offWr)))
}

// Free returns the number of bytes that can be written without overwriting.
func (r *Ring) Free() int {
	return r.Cap() - r.Len()
}

// Write appends as many bytes of p as there is free space for, in order,
// and returns the number of bytes written. Only the producer may call Write.
func (r *Ring) Write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	rd := load(r.mem, offRd) // acquire
	wr := load(r.mem, offWr)
	n := int(r.cap - r.used(rd, wr))
	if n == 0 {
		return 0
	}
	if len(p) < n {
		n = len(p)
	}
	pos := int(wr % r.cap)
	first := copy(r.data[pos:], p[:n])
	copy(r.data, p[first:n])
	store(r.mem, offWr, r.advance(wr, n)) // release
	return n
}

// Read consumes up to len(p) of the oldest unread bytes into p,
// and returns the number of bytes read. Only the consumer may call Read.
func (r *Ring) Read(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	rd := load(r.mem, offRd)
	wr := load(r.mem, offWr) // acquire
	n := int(r.used(rd, wr))
	if n == 0 {
		return 0
	}
	if len(p) < n {
		n = len(p)
	}
	pos := int(rd % r.cap)
	first := copy(p[:n], r.data[pos:])
	copy(p[first:n], r.data)
	store(r.mem, offRd, r.advance(rd, n)) // release
	return n
}

// Front returns the oldest unread byte without consuming it.
// ok is false if the ring is empty.
func (r *Ring) Front() (b byte, ok bool) {
	rd := load(r.mem, offRd)
	wr := load(r.mem, offWr) // acquire
	if r.used(rd, wr) == 0 {
		return 0, false
	}
	return r.data[rd%r.cap], true
}

func (r *Ring) used(rd, wr uint32) uint32 {
	lap := 2 * r.cap
	return (wr + lap - rd) % lap
}

func (r *Ring) advance(idx uint32, n int) uint32 {
	return (idx + uint32(n)) % (2 * r.cap)
}

func load(mem []byte, offs int) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&mem[offs])))
}

func store(mem []byte, offs int, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&mem[offs])), v)
}
