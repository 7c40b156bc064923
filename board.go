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
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is the lifecycle state of a Board.
type State int32

const (
	Unconfigured State = iota
	Configured
	Attached
	Prepared
	Running
	Suspended
	Stopped
)

var stateNames = [...]string{
	Unconfigured: "unconfigured",
	Configured:   "configured",
	Attached:     "attached",
	Prepared:     "prepared",
	Running:      "running",
	Suspended:    "suspended",
	Stopped:      "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Defaults for Board options.
const (
	DefaultLoopRate    = 1000 // sketch loop iterations per second
	DefaultStopTimeout = time.Second
)

// Board emulates one device running one sketch. Lifecycle operations
// are safe for concurrent use, and return ErrState, leaving the
// Board unchanged, when called in the wrong state:
//
//	Unconfigured -> Configured -> Attached -> Prepared -> Running <-> Suspended -> Stopped
//
// A Stopped Board may be configured again.
type Board struct {
	id          string
	log         *slog.Logger
	engine      Engine
	regionPath  string
	loopRate    float64
	stopTimeout time.Duration

	mu     sync.Mutex // serialises lifecycle operations
	state  atomic.Int32
	regMu  sync.RWMutex // read held by views while they access reg
	reg    atomic.Pointer[region]
	cfg    *Config
	sketch *Sketch
	exec   *execContext
	err    error // why the last execution context ended
}

// Option configures a Board.
type Option func(*Board)

// WithEngine selects the engine used to load sketches. The default is a WasmEngine.
func WithEngine(e Engine) Option {
	return func(b *Board) { b.engine = e }
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(b *Board) { b.log = l }
}

// WithRegionFile backs the shared region with the named file, which
// is created when the Board is prepared and removed when it stops.
func WithRegionFile(path string) Option {
	return func(b *Board) { b.regionPath = path }
}

// WithLoopRate limits how often the sketch loop runs per second.
// A rate <= 0 removes the limit.
func WithLoopRate(hz float64) Option {
	return func(b *Board) { b.loopRate = hz }
}

// WithStopTimeout bounds how long Stop waits for the execution context to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(b *Board) { b.stopTimeout = d }
}

// discardHandler drops every record; it stands in for slog.DiscardHandler
// (Go 1.24+) on older toolchains.
var discardHandler slog.Handler = slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)})

// NewBoard creates an Unconfigured Board.
func NewBoard(opts ...Option) *Board {
	b := &Board{
		id:          newID(),
		loopRate:    DefaultLoopRate,
		stopTimeout: DefaultStopTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = slog.New(discardHandler)
	}
	if b.engine == nil {
		b.engine = &WasmEngine{Logger: b.log}
	}
	b.log = b.log.With("board", b.id)
	return b
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ID returns the unique identifier of this Board.
func (b *Board) ID() string {
	return b.id
}

// State returns the current lifecycle state.
func (b *Board) State() State {
	return State(b.state.Load())
}

// Err returns the reason the last execution context ended on its own,
// or nil if it is still running or was stopped.
func (b *Board) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.exec != nil {
		return b.exec.exitErr()
	}
	return b.err
}

// View returns a view onto the Board's peripherals.
func (b *Board) View() View {
	return View{b}
}

// withRegion calls f with the shared region if the Board is Prepared,
// Running or Suspended, and reports whether it did. The region is not
// released while f runs.
func (b *Board) withRegion(f func(r *region)) bool {
	if b == nil {
		return false
	}
	b.regMu.RLock()
	defer b.regMu.RUnlock()
	r := b.reg.Load()
	if r == nil {
		return false
	}
	switch b.State() {
	case Prepared, Running, Suspended:
		f(r)
		return true
	}
	return false
}

func (b *Board) setState(s State) {
	b.state.Store(int32(s))
	b.log.Info("board state", "state", s)
}

func (b *Board) stateErr(op string) error {
	return fmt.Errorf("%s: %w (%s)", op, ErrState, b.State())
}

// Configure validates and records the configuration.
// The Board must be Unconfigured or Stopped.
func (b *Board) Configure(cfg *Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.State(); s != Unconfigured && s != Stopped {
		return b.stateErr("configure")
	}
	if cfg == nil {
		return fmt.Errorf("configure: %w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	b.cfg = cfg.clone()
	b.sketch = nil
	b.err = nil
	b.setState(Configured)
	return nil
}

// AttachSketch records the sketch to run. The Board must be Configured
// and the sketch must target a board compatible with the configuration.
func (b *Board) AttachSketch(sk *Sketch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Configured {
		return b.stateErr("attach sketch")
	}
	if sk == nil {
		return fmt.Errorf("attach sketch: %w: nil sketch", ErrIncompatibleSketch)
	}
	if err := compatible(b.cfg.FQBN, sk.FQBN); err != nil {
		return fmt.Errorf("attach sketch: %w: %v", ErrIncompatibleSketch, err)
	}
	b.sketch = sk
	b.log.Info("sketch attached", "sketch", sk.Name, "fqbn", sk.FQBN)
	b.setState(Attached)
	return nil
}

// Prepare allocates the shared region. The Board must be Attached.
// Once Prepared, views are valid and peripherals may be seeded before
// the sketch starts.
func (b *Board) Prepare() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Attached {
		return b.stateErr("prepare")
	}
	return b.prepare()
}

func (b *Board) prepare() error {
	r, err := newRegion(b.cfg, b.regionPath)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	b.reg.Store(r)
	b.log.Debug("region mapped", "bytes", len(r.mem), "file", b.regionPath)
	b.setState(Prepared)
	return nil
}

// Start loads the sketch and runs it in a new execution context.
// The Board must be Attached or Prepared; an Attached Board is prepared first.
func (b *Board) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.State()
	if s != Attached && s != Prepared {
		return b.stateErr("start")
	}
	if s == Attached {
		if err := b.prepare(); err != nil {
			return err
		}
	}
	prog, err := b.engine.Load(context.Background(), b.sketch)
	if err != nil {
		if s == Attached {
			b.release()
			b.setState(Attached)
		}
		return fmt.Errorf("start: load %s: %w", b.sketch.Name, err)
	}
	b.exec = newExecContext(prog, newDevice(b.reg.Load()), b.loopRate, b.log)
	b.exec.start()
	b.err = nil
	b.setState(Running)
	return nil
}

// Suspend pauses the execution context once no peripheral access
// is in flight. The shared region stays mapped and may be modified
// through views without racing the sketch.
func (b *Board) Suspend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Running {
		return b.stateErr("suspend")
	}
	b.exec.suspend()
	b.setState(Suspended)
	return nil
}

// Resume continues a suspended execution context.
func (b *Board) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.State() != Suspended {
		return b.stateErr("resume")
	}
	b.exec.resume()
	b.setState(Running)
	return nil
}

// Stop terminates the execution context and releases the shared region.
// The Board must be Running or Suspended.
func (b *Board) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.State()
	if s != Running && s != Suspended {
		return b.stateErr("stop")
	}
	b.shutdown(s == Suspended)
	return nil
}

// Close releases every resource held by the Board, whatever its state,
// leaving it Stopped.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch s := b.State(); s {
	case Running, Suspended:
		b.shutdown(s == Suspended)
	case Prepared:
		b.state.Store(int32(Stopped))
		b.release()
		b.setState(Stopped)
	case Stopped:
	default:
		b.setState(Stopped)
	}
	return nil
}

func (b *Board) shutdown(suspended bool) {
	// Views stop resolving before anything is torn down.
	b.state.Store(int32(Stopped))
	if !b.exec.stop(suspended, b.stopTimeout) {
		b.log.Warn("execution context did not exit", "timeout", b.stopTimeout)
	}
	b.err = b.exec.exitErr()
	b.exec = nil
	b.release()
	b.setState(Stopped)
}

// release unmaps the region once no view is using it.
func (b *Board) release() {
	b.regMu.Lock()
	r := b.reg.Swap(nil)
	b.regMu.Unlock()
	if r == nil {
		return
	}
	if err := r.close(); err != nil {
		b.log.Error("unmap region", "error", err)
	}
}
