// motion-uploader - upload stills of moving things seen by a camera
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package throttle

import (
	"errors"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// ErrInvalidCooldown is returned for a cooldown that isn't positive.
var ErrInvalidCooldown = errors.New("throttle cooldown must be positive")

// New returns a Throttle that allows one upload per cooldown period.
func New(cooldown time.Duration) (*Throttle, error) {
	if cooldown <= 0 {
		return nil, ErrInvalidCooldown
	}
	return &Throttle{cooldown: cooldown}, nil
}

// Throttle stops uploads happening more often than once every cooldown.
// Sending again straight away would most likely just send another picture
// of the same thing.
type Throttle struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     time.Time
	acquired bool
}

// TryAcquire reports whether an upload may go ahead at now. When it may,
// now is recorded as the last upload time as part of the same check so
// two callers can't both be let through.
func (t *Throttle) TryAcquire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.acquired && now.Sub(t.last) < t.cooldown {
		return false
	}
	t.last = now
	t.acquired = true
	return true
}

// Remaining returns how long until TryAcquire would next succeed.
func (t *Throttle) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.acquired {
		return 0
	}
	if left := t.cooldown - now.Sub(t.last); left > 0 {
		return left
	}
	return 0
}

var _ ratelimit.Clock = RealClock{}

// RealClock implements ratelimit.Clock in terms of standard time functions.
type RealClock struct{}

// Now implements Clock.Now by calling time.Now.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock.Sleep by calling time.Sleep.
func (RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
