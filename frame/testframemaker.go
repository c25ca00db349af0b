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

const boxSize = 8

// TestFrameMaker generates synthetic frames: a flat background with an
// optional bright box that moves a little on every call.
type TestFrameMaker struct {
	Width         int
	Height        int
	Format        PixelFormat
	BackgroundVal byte
	BrightSpotVal byte
	boxPosition   int
	frameCounter  byte
}

func MakeTestFrameMaker(width, height int, format PixelFormat) *TestFrameMaker {
	return &TestFrameMaker{
		Width:         width,
		Height:        height,
		Format:        format,
		BackgroundVal: 60,
		BrightSpotVal: 60,
	}
}

// BackgroundFrame returns a frame with nothing in it.
func (tfm *TestFrameMaker) BackgroundFrame() *Frame {
	return tfm.wrap(tfm.makeRaw())
}

// MovingBoxFrame returns a frame with the bright box moved on by 3 pixels.
func (tfm *TestFrameMaker) MovingBoxFrame() *Frame {
	return tfm.wrap(tfm.MovingBoxRaw())
}

// MovingBoxRaw is MovingBoxFrame as bytes on a frame stream.
func (tfm *TestFrameMaker) MovingBoxRaw() []byte {
	tfm.boxPosition += 3
	if tfm.boxPosition+boxSize > tfm.Width || tfm.boxPosition+boxSize > tfm.Height {
		tfm.boxPosition = 0
	}
	raw := tfm.makeRaw()
	bright := tfm.BackgroundVal + tfm.BrightSpotVal
	for y := tfm.boxPosition; y < tfm.boxPosition+boxSize; y++ {
		for x := tfm.boxPosition; x < tfm.boxPosition+boxSize; x++ {
			raw[y*tfm.Width+x] = bright
		}
	}
	return raw
}

// Raw returns the bytes of a background frame as they would be sent on
// a frame stream.
func (tfm *TestFrameMaker) Raw() []byte {
	return tfm.makeRaw()
}

func (tfm *TestFrameMaker) makeRaw() []byte {
	size, err := FrameSize(tfm.Format, tfm.Width, tfm.Height)
	if err != nil {
		panic(err)
	}
	raw := make([]byte, size)
	n := tfm.Width * tfm.Height
	for i := 0; i < n; i++ {
		raw[i] = tfm.BackgroundVal
	}
	// Neutral chroma, with a counter so frames can be told apart.
	for i := n; i < size; i++ {
		raw[i] = 128
	}
	raw[n] = tfm.frameCounter
	tfm.frameCounter++
	return raw
}

func (tfm *TestFrameMaker) wrap(raw []byte) *Frame {
	f := new(Frame)
	if err := Wrap(raw, tfm.Format, tfm.Width, tfm.Height, f); err != nil {
		panic(err)
	}
	return f
}
