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
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Engine loads compiled sketches into runnable programs.
type Engine interface {
	Load(ctx context.Context, sk *Sketch) (Program, error)
}

// Program is a loaded sketch. Setup is called once, then Loop repeatedly,
// from the Board's execution context. Both should return promptly once
// ctx is done. Close releases the program after the context has exited.
type Program interface {
	Setup(ctx context.Context, d *Device) error
	Loop(ctx context.Context, d *Device) error
	Close(ctx context.Context) error
}

// execContext runs one Program on its own goroutine.
type execContext struct {
	prog   Program
	dev    *Device
	lim    *rate.Limiter
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error // set if the program ended on its own
}

func newExecContext(prog Program, dev *Device, hz float64, log *slog.Logger) *execContext {
	e := &execContext{
		prog: prog,
		dev:  dev,
		log:  log,
		done: make(chan struct{}),
	}
	if hz > 0 {
		e.lim = rate.NewLimiter(rate.Limit(hz), 1)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

func (e *execContext) start() {
	go e.run()
}

func (e *execContext) run() {
	defer close(e.done)
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("sketch panicked", "panic", p, "stack", string(debug.Stack()))
			e.setErr(fmt.Errorf("sketch panicked: %v", p))
		}
	}()
	ctx := e.ctx
	if err := e.prog.Setup(ctx, e.dev); err != nil {
		e.exit(err)
		return
	}
	for {
		// Safe point between iterations.
		if !e.dev.safepoint() {
			return
		}
		if e.lim != nil {
			if err := e.lim.Wait(ctx); err != nil {
				return
			}
		}
		if err := e.prog.Loop(ctx, e.dev); err != nil {
			e.exit(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// exit records why the program ended unless it was asked to stop.
func (e *execContext) exit(err error) {
	if e.ctx.Err() != nil {
		return
	}
	e.log.Warn("sketch exited", "error", err)
	e.setErr(err)
}

func (e *execContext) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

func (e *execContext) exitErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// suspend returns once the program is parked at a safe point.
func (e *execContext) suspend() {
	e.dev.gate.Lock()
}

func (e *execContext) resume() {
	e.dev.gate.Unlock()
}

// stop shuts the device off from the region, cancels the program and
// waits up to timeout for the goroutine to exit. Once stop returns the
// program can no longer reach the region, even if it has not exited.
func (e *execContext) stop(suspended bool, timeout time.Duration) bool {
	// Cancel first so a program blocked outside a Device call wakes up.
	e.cancel()
	if !suspended {
		e.dev.gate.Lock()
	}
	e.dev.reg = nil
	e.dev.gate.Unlock()

	exited := true
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.done:
	case <-t.C:
		exited = false
	}
	if err := e.prog.Close(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		e.log.Warn("close sketch", "error", err)
	}
	return exited
}
