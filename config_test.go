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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const boardYAML = `
fqbn: arduino:avr:nano
pins: [0, 2, 13]
gpio_drivers:
  - pin: 0
    digital: {read: true, write: false}
    analog: {read: true}
  - pin: 2
    digital: {write: true}
uart_channels:
  - {}
  - rx_buffer: 128
    tx_buffer: 32
    baud_rate: 115200
frame_buffers:
  - direction: out
    max_width: 320
    max_height: 240
  - {}
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(boardYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "arduino:avr:nano", cfg.FQBN)
	assert.Equal(t, []uint16{0, 2, 13}, cfg.Pins)
	require.Len(t, cfg.GpioDrivers, 2)
	assert.Equal(t, &Capability{Read: true}, cfg.GpioDrivers[0].Digital)
	assert.Equal(t, &Capability{Read: true}, cfg.GpioDrivers[0].Analog)
	assert.Nil(t, cfg.GpioDrivers[1].Analog)
	require.Len(t, cfg.UARTChannels, 2)
	assert.Equal(t, UARTConfig{RxBuffer: 128, TxBuffer: 32, BaudRate: 115200}, cfg.UARTChannels[1])
	require.Len(t, cfg.FrameBuffers, 2)
	assert.Equal(t, DirectionOut, cfg.FrameBuffers[0].Direction)
	assert.Equal(t, DirectionIn, cfg.FrameBuffers[1].Direction)

	c := cfg.clone()
	assert.Equal(t, UARTConfig{RxBuffer: DefaultUARTBufferSize, TxBuffer: DefaultUARTBufferSize, BaudRate: DefaultBaudRate}, c.UARTChannels[0])
	assert.Equal(t, 320, c.FrameBuffers[0].MaxWidth)
	assert.Equal(t, DefaultFrameWidth, c.FrameBuffers[1].MaxWidth)
	assert.Equal(t, DefaultFrameHeight, c.FrameBuffers[1].MaxHeight)

	// The clone shares nothing with the original.
	c.GpioDrivers[0].Digital.Write = true
	c.Pins[0] = 99
	assert.False(t, cfg.GpioDrivers[0].Digital.Write)
	assert.Equal(t, uint16(0), cfg.Pins[0])
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("frame_buffers:\n  - direction: sideways\n"))
	assert.ErrorContains(t, err, "sideways")
	_, err = ParseConfig([]byte("pins: {"))
	assert.Error(t, err)
}

func TestDirectionYAML(t *testing.T) {
	out, err := yaml.Marshal(FrameBufferConfig{Direction: DirectionOut, MaxWidth: 8})
	require.NoError(t, err)
	assert.Contains(t, string(out), "direction: out")

	var f FrameBufferConfig
	require.NoError(t, yaml.Unmarshal(out, &f))
	assert.Equal(t, DirectionOut, f.Direction)
	assert.Equal(t, "in", DirectionIn.String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(boardYAML), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pins, 3)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("pins: ["), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		problems int
	}{
		{"empty", NewConfig(), 0},
		{"ok", NewConfig().AddPin(1, &Capability{}, nil).AddUART(UARTConfig{}).AddFrameBuffer(FrameBufferConfig{}), 0},
		{"duplicate pin", NewConfig().AddPin(1, nil, nil).AddPin(1, nil, nil), 1},
		{"duplicate driver", &Config{Pins: []uint16{4}, GpioDrivers: []GpioDriver{{Pin: 4}, {Pin: 4}}}, 1},
		{"undeclared driver", &Config{GpioDrivers: []GpioDriver{{Pin: 4}}}, 1},
		{"bad fqbn", NewConfig().SetFQBN("arduino"), 1},
		{"uart sizes", NewConfig().AddUART(UARTConfig{RxBuffer: -1}).AddUART(UARTConfig{TxBuffer: 1 << 30, BaudRate: -5}), 3},
		{"frame size", NewConfig().AddFrameBuffer(FrameBufferConfig{MaxWidth: -1}), 1},
		{"direction", NewConfig().AddFrameBuffer(FrameBufferConfig{Direction: 7}), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.problems == 0 {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Len(t, ce.Problems, tt.problems, "%v", ce.Problems)
		})
	}
}
