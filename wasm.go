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
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/aamcrae/smce/pixfmt"
)

// WasmHostModule is the import namespace of the functions a wasm sketch
// uses to reach its peripherals:
//
//	digital_read(pin i32) i32
//	digital_write(pin, level i32)
//	analog_read(pin i32) i32
//	analog_write(pin, value i32)
//	uart_available(ch i32) i32
//	uart_read(ch, ptr, len i32) i32
//	uart_write(ch, ptr, len i32) i32
//	frame_width(fb i32) i32
//	frame_height(fb i32) i32
//	frame_set_size(fb, width, height i32)
//	frame_read(fb, format, ptr, len i32) i32
//	frame_write(fb, format, ptr, len i32) i32
//	millis() i32
//	delay(ms i32)
//	log(ptr, len i32)
//
// frame_read and frame_write take a pixfmt.Format and return 1 on
// success, 0 otherwise. A sketch exports setup and loop, both () -> (),
// and optionally memory.
const WasmHostModule = "smce"

// DefaultWasmMemoryPages limits guest memory to 16MB.
const DefaultWasmMemoryPages = 256

// WasmEngine runs sketches compiled to WebAssembly.
type WasmEngine struct {
	// MaxMemoryPages is the guest memory limit in 64KB pages.
	MaxMemoryPages uint32
	Logger         *slog.Logger
}

// Load implements Engine. It compiles the artifact so that malformed
// sketches fail Board.Start.
func (e *WasmEngine) Load(ctx context.Context, sk *Sketch) (Program, error) {
	pages := e.MaxMemoryPages
	if pages == 0 {
		pages = DefaultWasmMemoryPages
	}
	log := e.Logger
	if log == nil {
		log = slog.New(discardHandler)
	}
	rtCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(pages)
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	compiled, err := rt.CompileModule(ctx, sk.Artifact)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile wasm: %w", err)
	}
	name := sk.Name
	if name == "" || name == WasmHostModule {
		name = "sketch"
	}
	return &wasmProgram{
		name:     name,
		rt:       rt,
		compiled: compiled,
		log:      log.With("sketch", name),
	}, nil
}

type wasmProgram struct {
	name     string
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	log      *slog.Logger
	dev      *Device
	mod      api.Module
	loop     api.Function
}

func (p *wasmProgram) Setup(ctx context.Context, d *Device) error {
	p.dev = d
	if _, err := p.hostModule().Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate %s: %w", WasmHostModule, err)
	}
	mod, err := p.rt.InstantiateModule(ctx, p.compiled,
		wazero.NewModuleConfig().WithName(p.name).WithStartFunctions())
	if err != nil {
		return fmt.Errorf("instantiate sketch: %w", err)
	}
	p.mod = mod
	p.loop = mod.ExportedFunction("loop")
	if setup := mod.ExportedFunction("setup"); setup != nil {
		if _, err := setup.Call(ctx); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return nil
}

func (p *wasmProgram) Loop(ctx context.Context, _ *Device) error {
	if p.loop == nil {
		return nil
	}
	if _, err := p.loop.Call(ctx); err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	return nil
}

func (p *wasmProgram) Close(ctx context.Context) error {
	return p.rt.Close(ctx)
}

// guestBytes returns a view of guest memory, or nil if out of range.
func guestBytes(mod api.Module, ptr, size uint32) []byte {
	mem := mod.Memory()
	if mem == nil || size == 0 {
		return nil
	}
	b, ok := mem.Read(ptr, size)
	if !ok {
		return nil
	}
	return b
}

func boolResult(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func (p *wasmProgram) hostModule() wazero.HostModuleBuilder {
	i32 := api.ValueTypeI32
	d := p.dev
	b := p.rt.NewHostModuleBuilder(WasmHostModule)
	fn := func(name string, params, results []api.ValueType, f api.GoModuleFunc) {
		b.NewFunctionBuilder().WithGoModuleFunction(f, params, results).Export(name)
	}

	fn("digital_read", []api.ValueType{i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = boolResult(d.DigitalRead(uint16(stack[0])))
		})
	fn("digital_write", []api.ValueType{i32, i32}, nil,
		func(ctx context.Context, mod api.Module, stack []uint64) {
			d.DigitalWrite(uint16(stack[0]), uint32(stack[1]) != 0)
		})
	fn("analog_read", []api.ValueType{i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = uint64(d.AnalogRead(uint16(stack[0])))
		})
	fn("analog_write", []api.ValueType{i32, i32}, nil,
		func(ctx context.Context, mod api.Module, stack []uint64) {
			d.AnalogWrite(uint16(stack[0]), uint16(stack[1]))
		})
	fn("uart_available", []api.ValueType{i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = uint64(d.SerialAvailable(int(int32(stack[0]))))
		})
	fn("uart_read", []api.ValueType{i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			ch := int(int32(stack[0]))
			buf := guestBytes(mod, uint32(stack[1]), uint32(stack[2]))
			stack[0] = uint64(d.SerialRead(ch, buf))
		})
	fn("uart_write", []api.ValueType{i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			ch := int(int32(stack[0]))
			buf := guestBytes(mod, uint32(stack[1]), uint32(stack[2]))
			stack[0] = uint64(d.SerialWrite(ch, buf))
		})
	fn("frame_width", []api.ValueType{i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			w, _ := d.FrameSize(int(int32(stack[0])))
			stack[0] = uint64(w)
		})
	fn("frame_height", []api.ValueType{i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			_, h := d.FrameSize(int(int32(stack[0])))
			stack[0] = uint64(h)
		})
	fn("frame_set_size", []api.ValueType{i32, i32, i32}, nil,
		func(ctx context.Context, mod api.Module, stack []uint64) {
			d.SetFrameSize(int(int32(stack[0])), int(int32(stack[1])), int(int32(stack[2])))
		})
	fn("frame_read", []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			fb, pf := int(int32(stack[0])), pixfmt.Format(int32(stack[1]))
			buf := guestBytes(mod, uint32(stack[2]), uint32(stack[3]))
			stack[0] = boolResult(d.ReadFrame(fb, pf, buf))
		})
	fn("frame_write", []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			fb, pf := int(int32(stack[0])), pixfmt.Format(int32(stack[1]))
			buf := guestBytes(mod, uint32(stack[2]), uint32(stack[3]))
			stack[0] = boolResult(d.WriteFrame(fb, pf, buf))
		})
	fn("millis", nil, []api.ValueType{i32},
		func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = uint64(d.Millis())
		})
	fn("delay", []api.ValueType{i32}, nil,
		func(ctx context.Context, mod api.Module, stack []uint64) {
			d.Delay(ctx, time.Duration(uint32(stack[0]))*time.Millisecond)
		})
	fn("log", []api.ValueType{i32, i32}, nil,
		func(ctx context.Context, mod api.Module, stack []uint64) {
			if msg := guestBytes(mod, uint32(stack[0]), uint32(stack[1])); msg != nil {
				p.log.Info(string(msg))
			}
		})
	return b
}
