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

// Package yuv turns planar camera frames into JPEG stills.
package yuv

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"github.com/TheCacophonyProject/motion-uploader/frame"
)

// MalformedFrameError is returned when a frame's geometry or planes can't
// be converted without reading past the end of a buffer.
type MalformedFrameError struct {
	Reason string
}

func (e *MalformedFrameError) Error() string {
	return "malformed frame: " + e.Reason
}

func malformed(format string, v ...interface{}) error {
	return &MalformedFrameError{Reason: fmt.Sprintf(format, v...)}
}

// BufferSize is the length of an interleaved buffer for the given frame
// dimensions.
func BufferSize(width, height int) int {
	return width * height * 3 / 2
}

// Convert builds an NV21 buffer (full luma plane followed by V,U pairs)
// from a planar frame. The chroma layout is chosen from the second chroma
// plane's pixel stride.
func Convert(f *frame.Frame) ([]byte, error) {
	if err := checkDimensions(f.Width, f.Height); err != nil {
		return nil, err
	}
	lumaSize := f.Width * f.Height
	out := make([]byte, BufferSize(f.Width, f.Height))

	if err := copyLuma(out[:lumaSize], &f.Planes[frame.LumaPlane], f.Width, f.Height); err != nil {
		return nil, err
	}

	first := &f.Planes[frame.FirstChromaPlane]
	second := &f.Planes[frame.SecondChromaPlane]
	var err error
	switch second.PixelStride {
	case 2:
		err = copyInterleavedChroma(out, lumaSize, first, second, f.Width, f.Height)
	case 1:
		err = interleavePlanarChroma(out, first, second, f.Width, f.Height)
	default:
		err = malformed("unsupported chroma pixel stride %d", second.PixelStride)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return malformed("invalid dimensions %dx%d", width, height)
	}
	if width%2 != 0 || height%2 != 0 {
		return malformed("dimensions %dx%d are not even", width, height)
	}
	return nil
}

func rowStride(p *frame.Plane, min int) (int, error) {
	if p.RowStride == 0 {
		return min, nil
	}
	if p.RowStride < min {
		return 0, malformed("row stride %d is less than %d", p.RowStride, min)
	}
	return p.RowStride, nil
}

func copyLuma(dst []byte, y *frame.Plane, width, height int) error {
	stride, err := rowStride(y, width)
	if err != nil {
		return err
	}
	if need := (height-1)*stride + width; len(y.Data) < need {
		return malformed("luma plane has %d bytes, need %d", len(y.Data), need)
	}
	if stride == width {
		copy(dst, y.Data[:width*height])
		return nil
	}
	for row := 0; row < height; row++ {
		copy(dst[row*width:(row+1)*width], y.Data[row*stride:row*stride+width])
	}
	return nil
}

// copyInterleavedChroma handles planes that already hold V,U pairs. The
// second plane's bytes are taken as they are. That plane stops one byte
// short of the final U sample, so the last output byte comes from the
// first plane.
func copyInterleavedChroma(out []byte, lumaSize int, first, second *frame.Plane, width, height int) error {
	rows := height / 2
	stride, err := rowStride(second, width)
	if err != nil {
		return err
	}
	if need := (rows-1)*stride + width - 1; len(second.Data) < need {
		return malformed("second chroma plane has %d bytes, need %d", len(second.Data), need)
	}

	dst := out[lumaSize:]
	if stride == width {
		copy(dst, second.Data)
	} else {
		for row := 0; row < rows; row++ {
			start := row * stride
			end := start + width
			if end > len(second.Data) {
				end = len(second.Data)
			}
			copy(dst[row*width:(row+1)*width], second.Data[start:end])
		}
	}

	last, err := lastSample(first, width, height)
	if err != nil {
		return err
	}
	out[len(out)-1] = last
	return nil
}

func lastSample(p *frame.Plane, width, height int) (byte, error) {
	if p.PixelStride < 1 {
		return 0, malformed("invalid chroma pixel stride %d", p.PixelStride)
	}
	stride, err := rowStride(p, width/2*p.PixelStride)
	if err != nil {
		return 0, err
	}
	i := (height/2-1)*stride + (width/2-1)*p.PixelStride
	if i >= len(p.Data) {
		return 0, malformed("first chroma plane has %d bytes, need %d", len(p.Data), i+1)
	}
	return p.Data[i], nil
}

// interleavePlanarChroma walks both planes from the last sample back to
// the first, writing V,U pairs from the end of out.
func interleavePlanarChroma(out []byte, first, second *frame.Plane, width, height int) error {
	cols := width / 2
	rows := height / 2
	if first.PixelStride != 1 {
		return malformed("chroma pixel strides differ: %d and %d", first.PixelStride, second.PixelStride)
	}
	uStride, err := rowStride(first, cols)
	if err != nil {
		return err
	}
	vStride, err := rowStride(second, cols)
	if err != nil {
		return err
	}
	if need := (rows-1)*uStride + cols; len(first.Data) < need {
		return malformed("first chroma plane has %d bytes, need %d", len(first.Data), need)
	}
	if need := (rows-1)*vStride + cols; len(second.Data) < need {
		return malformed("second chroma plane has %d bytes, need %d", len(second.Data), need)
	}

	offset := len(out) - 1
	for i := rows*cols - 1; i >= 0; i-- {
		row, col := i/cols, i%cols
		out[offset] = first.Data[row*uStride+col]
		out[offset-1] = second.Data[row*vStride+col]
		offset -= 2
	}
	return nil
}

// Encode compresses an NV21 buffer to a JPEG covering the whole frame.
// Quality runs from 1 to 100.
func Encode(buf []byte, width, height, quality int) ([]byte, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	if len(buf) < BufferSize(width, height) {
		return nil, malformed("buffer has %d bytes, need %d", len(buf), BufferSize(width, height))
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	lumaSize := width * height
	copy(img.Y, buf[:lumaSize])
	for i := range img.Cb {
		img.Cr[i] = buf[lumaSize+2*i]
		img.Cb[i] = buf[lumaSize+2*i+1]
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// FrameToJPEG converts and encodes f in one step.
func FrameToJPEG(f *frame.Frame, quality int) ([]byte, error) {
	buf, err := Convert(f)
	if err != nil {
		return nil, err
	}
	return Encode(buf, f.Width, f.Height, quality)
}

// Rotate90 turns a JPEG a quarter turn clockwise and re-encodes it.
func Rotate90(data []byte, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	// imaging rotates counter-clockwise.
	rotated := imaging.Rotate270(img)

	var out bytes.Buffer
	if err := imaging.Encode(&out, rotated, imaging.JPEG, imaging.JPEGQuality(clampQuality(quality))); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
