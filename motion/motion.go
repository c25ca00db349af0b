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

package motion

import (
	"fmt"
	"log"
)

// Result is the outcome of comparing a frame against the previous one.
type Result struct {
	Score          int
	MotionDetected bool
}

// FrameSizeMismatchError is returned when a luma plane isn't the same
// length as the one before it. Frames must stay the same size for the
// life of a detector.
type FrameSizeMismatchError struct {
	Expected int
	Got      int
}

func (e *FrameSizeMismatchError) Error() string {
	return fmt.Sprintf("luma plane is %d bytes, expected %d", e.Got, e.Expected)
}

// NewDetector returns a detector with no baseline frame.
func NewDetector(conf Config) (*Detector, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		stride:      conf.SamplingStride,
		sensitivity: conf.Sensitivity,
		verbose:     conf.Verbose,
	}, nil
}

// Detector compares each luma plane with the previous one. It is not
// safe for concurrent use.
type Detector struct {
	stride      int
	sensitivity int
	verbose     bool
	prev        []byte
	primed      bool
}

// Observe scores luma against the previously observed plane and then keeps
// a copy of it as the new baseline. The first call only sets the baseline.
func (d *Detector) Observe(luma []byte) (Result, error) {
	if !d.primed {
		d.keep(luma)
		d.primed = true
		return Result{}, nil
	}

	if len(luma) != len(d.prev) {
		return Result{}, &FrameSizeMismatchError{Expected: len(d.prev), Got: len(luma)}
	}

	score := frameDiff(d.prev, luma, d.stride)
	d.keep(luma)

	if d.verbose && score > 0 {
		log.Printf("motion score %d (sensitivity %d)", score, d.sensitivity)
	}
	return Result{
		Score:          score,
		MotionDetected: score > d.sensitivity,
	}, nil
}

// Reset drops the baseline so the next frame observed becomes the new one.
func (d *Detector) Reset() {
	d.primed = false
	d.prev = d.prev[:0]
}

// Primed reports whether a baseline frame is held.
func (d *Detector) Primed() bool {
	return d.primed
}

func (d *Detector) keep(luma []byte) {
	if cap(d.prev) < len(luma) {
		d.prev = make([]byte, len(luma))
	}
	d.prev = d.prev[:len(luma)]
	copy(d.prev, luma)
}

func frameDiff(a, b []byte, stride int) int {
	var total int
	for i := 0; i < len(a); i += stride {
		total += absDiff(a[i], b[i])
	}
	return total
}

// absDiff treats the bytes as signed 8 bit values.
func absDiff(a, b byte) int {
	d := int(int8(a)) - int(int8(b))
	if d < 0 {
		return -d
	}
	return d
}
