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
	"time"
)

// WaitFor polls cond every interval until it returns true, up to
// attempts times. It returns nil once cond holds, ErrTimeout if it
// never does, or the context error if ctx is done first.
// Values flow through the region asynchronously, so hosts use WaitFor
// to observe the effect of a sketch rather than sleeping.
func WaitFor(ctx context.Context, interval time.Duration, attempts int, cond func() bool) error {
	if cond() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 1; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if cond() {
			return nil
		}
	}
	return fmt.Errorf("condition not met after %d attempts: %w", attempts, ErrTimeout)
}

// WaitPin waits for a digital pin to read level.
func WaitPin(ctx context.Context, p DigitalPin, level bool, timeout time.Duration) error {
	const interval = time.Millisecond
	n := int(timeout / interval)
	if n < 1 {
		n = 1
	}
	return WaitFor(ctx, interval, n, func() bool { return p.Read() == level })
}
