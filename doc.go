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

/*

Package smce emulates a microcontroller board so that sketches can be run
and tested on a host.

A Board is configured with the board's peripherals (GPIO pins, UART channels
and frame buffers), has a compiled sketch attached, and is then prepared and
started:

	b := smce.NewBoard()
	cfg := smce.NewConfig().AddPin(0, &smce.Capability{Write: true}, nil).AddUART(smce.UARTConfig{})
	b.Configure(cfg)
	b.AttachSketch(sk)
	b.Start()
	v := b.View()
	v.Pin(0).Digital().Write(true)

Preparing maps a shared memory region holding one cell per peripheral.
The sketch runs in its own execution context and accesses the cells through
a Device; the host accesses them through a View, subject to the capabilities
in the configuration. Neither side is notified of changes made by the other;
hosts poll, e.g with WaitFor.

Sketches are loaded by an Engine. WasmEngine, the default, runs WebAssembly
modules importing the host module named by WasmHostModule. NativeEngine runs
sketches written in Go; package sketches provides a few.

Frame buffers store RGB888 pixels and convert to and from the formats in
package pixfmt. UART channels are a pair of byte rings from package ring.

*/
package smce
