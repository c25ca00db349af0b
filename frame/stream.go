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
	"fmt"
	"io"
)

// Reader reads a header and then fixed size raw frames from a camera
// connection.
type Reader struct {
	r      *bufio.Reader
	header *HeaderInfo
	buf    []byte
	frame  Frame
}

// NewReader consumes the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	header, err := ReadHeaderInfo(br)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:      br,
		header: header,
		buf:    make([]byte, header.FrameSize()),
	}, nil
}

func (r *Reader) Header() *HeaderInfo {
	return r.header
}

// Next reads the next frame. The returned frame and its planes are reused
// by the following call to Next.
func (r *Reader) Next() (*Frame, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return nil, err
	}
	h := r.header
	if err := Wrap(r.buf, h.PixelFormat(), h.ResX(), h.ResY(), &r.frame); err != nil {
		return nil, err
	}
	return &r.frame, nil
}

// Writer is the sending side of a frame stream.
type Writer struct {
	w      io.Writer
	header *HeaderInfo
}

// NewWriter writes the header to w.
func NewWriter(w io.Writer, header *HeaderInfo) (*Writer, error) {
	if err := WriteHeaderInfo(w, header); err != nil {
		return nil, err
	}
	return &Writer{w: w, header: header}, nil
}

// WriteFrame sends one raw frame. It must be exactly FrameSize bytes.
func (w *Writer) WriteFrame(raw []byte) error {
	if len(raw) != w.header.FrameSize() {
		return fmt.Errorf("frame is %d bytes, expected %d", len(raw), w.header.FrameSize())
	}
	_, err := w.w.Write(raw)
	return err
}
