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
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to zero-valued configuration fields.
const (
	DefaultUARTBufferSize = 64
	DefaultBaudRate       = 9600
	DefaultFrameWidth     = 640
	DefaultFrameHeight    = 480
)

// Upper limits accepted by Validate.
const (
	maxUARTBuffer = 1 << 20
	maxFrameSide  = 1 << 13
)

// Capability describes what the host may do with one mode of a pin.
type Capability struct {
	Read  bool `yaml:"read"`
	Write bool `yaml:"write"`
}

// GpioDriver declares the modes of a pin and the host capabilities of each.
// A nil mode does not exist on the pin.
type GpioDriver struct {
	Pin     uint16      `yaml:"pin"`
	Digital *Capability `yaml:"digital,omitempty"`
	Analog  *Capability `yaml:"analog,omitempty"`
}

// UARTConfig declares one UART channel. Zero buffer sizes use DefaultUARTBufferSize.
type UARTConfig struct {
	RxBuffer int `yaml:"rx_buffer,omitempty"` // host to sketch
	TxBuffer int `yaml:"tx_buffer,omitempty"` // sketch to host
	BaudRate int `yaml:"baud_rate,omitempty"`
}

// Direction of data flow through a frame buffer.
type Direction int

const (
	DirectionIn  Direction = iota // host to sketch, e.g a camera
	DirectionOut                  // sketch to host, e.g a display
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// MarshalYAML encodes the direction as "in" or "out".
func (d Direction) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts "in" or "out".
func (d *Direction) UnmarshalYAML(n *yaml.Node) error {
	switch strings.ToLower(n.Value) {
	case "", "in":
		*d = DirectionIn
	case "out":
		*d = DirectionOut
	default:
		return fmt.Errorf("line %d: unknown frame buffer direction %q", n.Line, n.Value)
	}
	return nil
}

// FrameBufferConfig declares one frame buffer. MaxWidth and MaxHeight
// reserve space in the shared region for the canonical pixel store;
// zero values use DefaultFrameWidth and DefaultFrameHeight.
type FrameBufferConfig struct {
	Direction Direction `yaml:"direction"`
	MaxWidth  int       `yaml:"max_width,omitempty"`
	MaxHeight int       `yaml:"max_height,omitempty"`
}

// Config describes the peripherals of a board. A Config is built with the
// Add methods or loaded from YAML, e.g:
//   cfg := NewConfig().AddPin(0, &Capability{Read: true}, nil).AddUART(UARTConfig{})
//   b.Configure(cfg)
// Once passed to Board.Configure, a Config must not be modified.
type Config struct {
	FQBN         string              `yaml:"fqbn,omitempty"`
	Pins         []uint16            `yaml:"pins,omitempty"`
	GpioDrivers  []GpioDriver        `yaml:"gpio_drivers,omitempty"`
	UARTChannels []UARTConfig        `yaml:"uart_channels,omitempty"`
	FrameBuffers []FrameBufferConfig `yaml:"frame_buffers,omitempty"`
}

// NewConfig creates an empty Config.
func NewConfig() *Config {
	return new(Config)
}

// SetFQBN records the board identifier that sketches must target.
func (c *Config) SetFQBN(fqbn string) *Config {
	c.FQBN = fqbn
	return c
}

// AddPin declares a pin and, if either mode is non-nil, its driver.
func (c *Config) AddPin(pin uint16, digital, analog *Capability) *Config {
	c.Pins = append(c.Pins, pin)
	if digital != nil || analog != nil {
		c.GpioDrivers = append(c.GpioDrivers, GpioDriver{Pin: pin, Digital: digital, Analog: analog})
	}
	return c
}

// AddUART appends a UART channel.
func (c *Config) AddUART(u UARTConfig) *Config {
	c.UARTChannels = append(c.UARTChannels, u)
	return c
}

// AddFrameBuffer appends a frame buffer.
func (c *Config) AddFrameBuffer(f FrameBufferConfig) *Config {
	c.FrameBuffers = append(c.FrameBuffers, f)
	return c
}

// ConfigError lists every problem found by Validate.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid board config: " + strings.Join(e.Problems, "; ")
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func (e *ConfigError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	ce := &ConfigError{}
	if c.FQBN != "" {
		if _, err := parseFQBN(c.FQBN); err != nil {
			ce.add("%v", err)
		}
	}
	pins := make(map[uint16]bool)
	for _, p := range c.Pins {
		if pins[p] {
			ce.add("pin %d declared more than once", p)
		}
		pins[p] = true
	}
	drivers := make(map[uint16]bool)
	for _, d := range c.GpioDrivers {
		if drivers[d.Pin] {
			ce.add("pin %d has more than one gpio driver", d.Pin)
		}
		drivers[d.Pin] = true
		if !pins[d.Pin] {
			ce.add("gpio driver for undeclared pin %d", d.Pin)
		}
	}
	for i, u := range c.UARTChannels {
		if u.RxBuffer < 0 || u.RxBuffer > maxUARTBuffer || u.TxBuffer < 0 || u.TxBuffer > maxUARTBuffer {
			ce.add("uart channel %d: buffer size out of range", i)
		}
		if u.BaudRate < 0 {
			ce.add("uart channel %d: negative baud rate", i)
		}
	}
	for i, f := range c.FrameBuffers {
		if f.MaxWidth < 0 || f.MaxWidth > maxFrameSide || f.MaxHeight < 0 || f.MaxHeight > maxFrameSide {
			ce.add("frame buffer %d: size out of range", i)
		}
		if f.Direction != DirectionIn && f.Direction != DirectionOut {
			ce.add("frame buffer %d: unknown direction %d", i, f.Direction)
		}
	}
	if len(ce.Problems) > 0 {
		return ce
	}
	return nil
}

// clone returns a deep copy with defaults filled in.
func (c *Config) clone() *Config {
	n := &Config{FQBN: c.FQBN}
	n.Pins = append([]uint16(nil), c.Pins...)
	for _, d := range c.GpioDrivers {
		if d.Digital != nil {
			v := *d.Digital
			d.Digital = &v
		}
		if d.Analog != nil {
			v := *d.Analog
			d.Analog = &v
		}
		n.GpioDrivers = append(n.GpioDrivers, d)
	}
	for _, u := range c.UARTChannels {
		if u.RxBuffer == 0 {
			u.RxBuffer = DefaultUARTBufferSize
		}
		if u.TxBuffer == 0 {
			u.TxBuffer = DefaultUARTBufferSize
		}
		if u.BaudRate == 0 {
			u.BaudRate = DefaultBaudRate
		}
		n.UARTChannels = append(n.UARTChannels, u)
	}
	for _, f := range c.FrameBuffers {
		if f.MaxWidth == 0 {
			f.MaxWidth = DefaultFrameWidth
		}
		if f.MaxHeight == 0 {
			f.MaxHeight = DefaultFrameHeight
		}
		n.FrameBuffers = append(n.FrameBuffers, f)
	}
	return n
}

// ParseConfig decodes a YAML board configuration.
func ParseConfig(data []byte) (*Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse board config: %w", err)
	}
	return c, nil
}

// LoadConfig reads and decodes a YAML board configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, errors.Unwrap(err))
	}
	return c, nil
}
