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
	"sync"
)

// ProgramFuncs adapts plain functions to a Program. Nil functions do nothing.
type ProgramFuncs struct {
	SetupFunc func(ctx context.Context, d *Device) error
	LoopFunc  func(ctx context.Context, d *Device) error
	CloseFunc func(ctx context.Context) error
}

func (p *ProgramFuncs) Setup(ctx context.Context, d *Device) error {
	if p.SetupFunc == nil {
		return nil
	}
	return p.SetupFunc(ctx, d)
}

func (p *ProgramFuncs) Loop(ctx context.Context, d *Device) error {
	if p.LoopFunc == nil {
		return nil
	}
	return p.LoopFunc(ctx, d)
}

func (p *ProgramFuncs) Close(ctx context.Context) error {
	if p.CloseFunc == nil {
		return nil
	}
	return p.CloseFunc(ctx)
}

// NativeEngine runs sketches written in Go. Sketches are registered
// by name and looked up by Sketch.Name; the artifact is ignored.
type NativeEngine struct {
	mu       sync.RWMutex
	programs map[string]func() Program
}

// NewNativeEngine creates an empty NativeEngine.
func NewNativeEngine() *NativeEngine {
	return &NativeEngine{programs: make(map[string]func() Program)}
}

// Register installs a constructor for the named sketch, replacing any
// existing one. A new Program is made each time the sketch is started.
func (e *NativeEngine) Register(name string, newProgram func() Program) *NativeEngine {
	e.mu.Lock()
	e.programs[name] = newProgram
	e.mu.Unlock()
	return e
}

// Load implements Engine.
func (e *NativeEngine) Load(_ context.Context, sk *Sketch) (Program, error) {
	e.mu.RLock()
	f, ok := e.programs[sk.Name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no native sketch named %q", sk.Name)
	}
	return f(), nil
}
