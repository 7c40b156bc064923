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

import "errors"

var (
	// ErrState is returned when a lifecycle operation is not valid in the
	// board's current state. The state is unchanged.
	ErrState = errors.New("operation not valid in current board state")
	// ErrInvalidConfig is wrapped by *ConfigError.
	ErrInvalidConfig = errors.New("invalid board config")
	// ErrIncompatibleSketch is returned when a sketch cannot run on the configured board.
	ErrIncompatibleSketch = errors.New("incompatible sketch")
	// ErrTimeout is returned by WaitFor when the condition is never met.
	ErrTimeout = errors.New("timed out")
)
