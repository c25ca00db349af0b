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

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h, err := NewHeaderInfo(640, 480, 30, NV21, "logitech", "c270")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHeaderInfo(&buf, h))

	got, err := ReadHeaderInfo(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, 640, got.ResX())
	assert.Equal(t, 480, got.ResY())
	assert.Equal(t, 30, got.FPS())
	assert.Equal(t, NV21, got.PixelFormat())
	assert.Equal(t, 640*480*3/2, got.FrameSize())
	assert.Equal(t, "logitech", got.Brand())
	assert.Equal(t, "c270", got.Model())
}

func TestHeaderWithoutFrameSize(t *testing.T) {
	in := "ResX: 4\nResY: 2\nPixelFormat: I420\n\n"
	h, err := ReadHeaderInfo(bufio.NewReader(strings.NewReader(in)))
	require.NoError(t, err)
	assert.Equal(t, 12, h.FrameSize())
}

func TestHeaderRejectsOddDimensions(t *testing.T) {
	in := "ResX: 5\nResY: 2\nPixelFormat: I420\n\n"
	_, err := ReadHeaderInfo(bufio.NewReader(strings.NewReader(in)))
	assert.Error(t, err)

	_, err = NewHeaderInfo(4, 3, 10, NV12, "", "")
	assert.Error(t, err)
}

func TestHeaderRejectsUnknownFormat(t *testing.T) {
	in := "ResX: 4\nResY: 2\nPixelFormat: YUYV\n\n"
	_, err := ReadHeaderInfo(bufio.NewReader(strings.NewReader(in)))
	assert.Error(t, err)
}

func TestStreamReadsFrames(t *testing.T) {
	h, err := NewHeaderInfo(4, 2, 10, I420, "", "")
	require.NoError(t, err)

	var conn bytes.Buffer
	w, err := NewWriter(&conn, h)
	require.NoError(t, err)
	first := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	second := []byte{21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32}
	require.NoError(t, w.WriteFrame(first))
	require.NoError(t, w.WriteFrame(second))
	assert.Error(t, w.WriteFrame([]byte{1, 2, 3}))

	r, err := NewReader(&conn)
	require.NoError(t, err)
	assert.Equal(t, I420, r.Header().PixelFormat())

	f, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, f.Luma())
	assert.Equal(t, []byte{9, 10}, f.Planes[FirstChromaPlane].Data)
	assert.Equal(t, []byte{11, 12}, f.Planes[SecondChromaPlane].Data)

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{21, 22, 23, 24, 25, 26, 27, 28}, f.Luma())

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestWrapInterleaved(t *testing.T) {
	// 4x2 luma then V,U,V,U
	raw := []byte{0, 0, 0, 0, 0, 0, 0, 0, 'v', 'u', 'V', 'U'}

	var f Frame
	require.NoError(t, Wrap(raw, NV21, 4, 2, &f))
	assert.Equal(t, []byte{'v', 'u', 'V'}, f.Planes[SecondChromaPlane].Data)
	assert.Equal(t, []byte{'u', 'V', 'U'}, f.Planes[FirstChromaPlane].Data)
	assert.Equal(t, 2, f.Planes[SecondChromaPlane].PixelStride)

	require.NoError(t, Wrap(raw, NV12, 4, 2, &f))
	assert.Equal(t, []byte{'v', 'u', 'V'}, f.Planes[FirstChromaPlane].Data)
	assert.Equal(t, []byte{'u', 'V', 'U'}, f.Planes[SecondChromaPlane].Data)

	assert.Error(t, Wrap(raw[:10], NV21, 4, 2, &f))
}

func TestLatestReturnsIndependentCopy(t *testing.T) {
	var latest Latest
	assert.Nil(t, latest.CopyRecent())

	tfm := MakeTestFrameMaker(16, 16, I420)
	f := tfm.BackgroundFrame()
	latest.Store(f)
	f.Luma()[0] = 255

	c := latest.CopyRecent()
	require.NotNil(t, c)
	assert.Equal(t, tfm.BackgroundVal, c.Luma()[0])
	assert.Equal(t, 16, c.Width)

	latest.Clear()
	assert.Nil(t, latest.CopyRecent())
}
