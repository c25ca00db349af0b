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

package frame

import "sync"

// Latest holds a copy of the most recent frame so it can be read by
// goroutines other than the one receiving frames.
type Latest struct {
	mu    sync.Mutex
	frame *Frame
}

// Store copies f. The caller may reuse f afterwards.
func (l *Latest) Store(f *Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil {
		l.frame = new(Frame)
	}
	l.frame.Copy(f)
}

// CopyRecent returns a copy of the stored frame, or nil if nothing has
// been stored yet.
func (l *Latest) CopyRecent() *Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frame == nil {
		return nil
	}
	return l.frame.CreateCopy()
}

// Clear forgets the stored frame, e.g. when the camera disconnects.
func (l *Latest) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = nil
}
