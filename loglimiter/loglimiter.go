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

// Package loglimiter stops per-frame messages from flooding the log.
package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Entries older than the interval are dropped once this many are held.
const pruneSize = 64

func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		entries:  make(map[string]*entry),
	}
}

// LogLimiter prints a message at most once per interval. Repeats within
// the interval are counted and the count is reported with the next
// printed copy of the same message.
type LogLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	nowFunc  func() time.Time
	entries  map[string]*entry
}

type entry struct {
	printed    time.Time
	suppressed int
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(s string) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.nowFunc()
	e, ok := limiter.entries[s]
	if ok && now.Sub(e.printed) < limiter.interval {
		e.suppressed++
		return
	}

	if ok && e.suppressed > 0 {
		log.Printf("%s (repeated %d times)", s, e.suppressed)
	} else {
		log.Print(s)
	}
	if !ok {
		limiter.prune(now)
		e = new(entry)
		limiter.entries[s] = e
	}
	e.printed = now
	e.suppressed = 0
}

func (limiter *LogLimiter) prune(now time.Time) {
	if len(limiter.entries) < pruneSize {
		return
	}
	for s, e := range limiter.entries {
		if now.Sub(e.printed) >= limiter.interval {
			delete(limiter.entries, s)
		}
	}
}
