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

import "fmt"

// Plane indexes within a Frame.
const (
	LumaPlane = iota
	FirstChromaPlane
	SecondChromaPlane
)

// PixelFormat names the byte layout of a raw frame on the wire.
type PixelFormat string

const (
	// I420 is fully planar: Y, then U, then V.
	I420 PixelFormat = "I420"
	// NV12 is Y followed by interleaved U,V pairs.
	NV12 PixelFormat = "NV12"
	// NV21 is Y followed by interleaved V,U pairs.
	NV21 PixelFormat = "NV21"
)

// Plane is one channel of a frame. PixelStride is the distance in bytes
// between two horizontally adjacent samples.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// Frame is a single camera frame in a 4:2:0 planar layout. Planes are
// ordered luma, first chroma (Cb/U) then second chroma (Cr/V).
type Frame struct {
	Width  int
	Height int
	Planes [3]Plane
}

// Luma returns the raw bytes of the luma plane.
func (f *Frame) Luma() []byte {
	return f.Planes[LumaPlane].Data
}

// Copy makes f a deep copy of src, reusing f's buffers where they are
// large enough.
func (f *Frame) Copy(src *Frame) {
	f.Width = src.Width
	f.Height = src.Height
	for i := range f.Planes {
		sp := &src.Planes[i]
		dp := &f.Planes[i]
		if cap(dp.Data) < len(sp.Data) {
			dp.Data = make([]byte, len(sp.Data))
		}
		dp.Data = dp.Data[:len(sp.Data)]
		copy(dp.Data, sp.Data)
		dp.RowStride = sp.RowStride
		dp.PixelStride = sp.PixelStride
	}
}

// CreateCopy returns a new deep copy of the frame.
func (f *Frame) CreateCopy() *Frame {
	out := new(Frame)
	out.Copy(f)
	return out
}

// FrameSize returns the number of bytes a raw frame of the given format
// and dimensions occupies.
func FrameSize(format PixelFormat, width, height int) (int, error) {
	switch format {
	case I420, NV12, NV21:
		return width * height * 3 / 2, nil
	}
	return 0, fmt.Errorf("unsupported pixel format %q", format)
}

// Wrap points the planes of f into buf according to format. No bytes are
// copied so f is only valid for as long as buf is.
func Wrap(buf []byte, format PixelFormat, width, height int, f *Frame) error {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	size, err := FrameSize(format, width, height)
	if err != nil {
		return err
	}
	if len(buf) < size {
		return fmt.Errorf("frame buffer too short: %d < %d", len(buf), size)
	}

	n := width * height
	f.Width = width
	f.Height = height
	f.Planes[LumaPlane] = Plane{Data: buf[:n], RowStride: width, PixelStride: 1}

	switch format {
	case I420:
		q := n / 4
		f.Planes[FirstChromaPlane] = Plane{Data: buf[n : n+q], RowStride: width / 2, PixelStride: 1}
		f.Planes[SecondChromaPlane] = Plane{Data: buf[n+q : n+2*q], RowStride: width / 2, PixelStride: 1}
	case NV12:
		f.Planes[FirstChromaPlane] = Plane{Data: buf[n : n+n/2-1], RowStride: width, PixelStride: 2}
		f.Planes[SecondChromaPlane] = Plane{Data: buf[n+1 : n+n/2], RowStride: width, PixelStride: 2}
	case NV21:
		f.Planes[SecondChromaPlane] = Plane{Data: buf[n : n+n/2-1], RowStride: width, PixelStride: 2}
		f.Planes[FirstChromaPlane] = Plane{Data: buf[n+1 : n+n/2], RowStride: width, PixelStride: 2}
	}
	return nil
}
