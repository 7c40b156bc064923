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

import "github.com/aamcrae/smce/ring"

// UARTChannel is a view of one UART channel.
type UARTChannel struct {
	b  *Board
	ch int
}

// Exists returns true if the channel was configured.
func (u UARTChannel) Exists() bool {
	ok := false
	u.b.withRegion(func(r *region) { _, _, ok = r.uart(u.ch) })
	return ok
}

// BaudRate returns the configured baud rate, or 0 if the channel does not exist.
func (u UARTChannel) BaudRate() int {
	baud := 0
	u.b.withRegion(func(r *region) {
		if u.ch >= 0 && u.ch < len(r.lay.uarts) {
			baud = int(r.rd(r.lay.uarts[u.ch] + uartBaud))
		}
	})
	return baud
}

// Rx returns the host to sketch buffer. The host is its only producer.
func (u UARTChannel) Rx() UARTBuffer {
	return UARTBuffer{u, false}
}

// Tx returns the sketch to host buffer. The host is its only consumer.
func (u UARTChannel) Tx() UARTBuffer {
	return UARTBuffer{u, true}
}

// UARTBuffer is a view of one direction of a UART channel.
// No operation blocks, and every operation on a buffer that does not
// exist returns a zero value.
type UARTBuffer struct {
	u  UARTChannel
	tx bool
}

// with calls f with the ring while the region is held.
func (b UARTBuffer) with(f func(q *ring.Ring)) bool {
	ok := false
	b.u.b.withRegion(func(r *region) {
		rx, tx, exists := r.uart(b.u.ch)
		if !exists {
			return
		}
		ok = true
		if b.tx {
			f(tx)
		} else {
			f(rx)
		}
	})
	return ok
}

// Exists returns true if the channel was configured.
func (b UARTBuffer) Exists() bool {
	return b.with(func(*ring.Ring) {})
}

// MaxSize returns the capacity of the buffer in bytes.
func (b UARTBuffer) MaxSize() int {
	n := 0
	b.with(func(q *ring.Ring) { n = q.Cap() })
	return n
}

// Size returns the number of unread bytes.
func (b UARTBuffer) Size() int {
	n := 0
	b.with(func(q *ring.Ring) { n = q.Len() })
	return n
}

// Front returns the oldest unread byte without consuming it,
// or 0 if the buffer is empty.
func (b UARTBuffer) Front() byte {
	var c byte
	b.with(func(q *ring.Ring) { c, _ = q.Front() })
	return c
}

// Read consumes up to len(p) bytes into p and returns the count read.
func (b UARTBuffer) Read(p []byte) int {
	n := 0
	b.with(func(q *ring.Ring) { n = q.Read(p) })
	return n
}

// Write appends as much of p as fits and returns the count written.
func (b UARTBuffer) Write(p []byte) int {
	n := 0
	b.with(func(q *ring.Ring) { n = q.Write(p) })
	return n
}
