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
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v1"
)

// Header field names sent at the start of a frame stream.
const (
	XResolution = "ResX"
	YResolution = "ResY"
	FPS         = "FPS"
	Format      = "PixelFormat"
	Size        = "FrameSize"
	Brand       = "Brand"
	Model       = "Model"
)

// HeaderInfo describes the frames that follow it on a frame stream.
type HeaderInfo struct {
	resX      int
	resY      int
	fps       int
	framesize int
	format    PixelFormat
	brand     string
	model     string
}

// NewHeaderInfo builds the header for a stream of frames with the given
// geometry.
func NewHeaderInfo(resX, resY, fps int, format PixelFormat, brand, model string) (*HeaderInfo, error) {
	h := &HeaderInfo{
		resX:   resX,
		resY:   resY,
		fps:    fps,
		format: format,
		brand:  brand,
		model:  model,
	}
	size, err := FrameSize(format, resX, resY)
	if err != nil {
		return nil, err
	}
	h.framesize = size
	return h, h.Validate()
}

func (h *HeaderInfo) ResX() int { return h.resX }

func (h *HeaderInfo) ResY() int { return h.resY }

func (h *HeaderInfo) FPS() int { return h.fps }

// FrameSize returns the number of bytes in each frame.
func (h *HeaderInfo) FrameSize() int { return h.framesize }

func (h *HeaderInfo) PixelFormat() PixelFormat { return h.format }

func (h *HeaderInfo) Brand() string { return h.brand }

func (h *HeaderInfo) Model() string { return h.model }

// Validate checks the header describes frames the converter can handle.
func (h *HeaderInfo) Validate() error {
	if h.resX <= 0 || h.resY <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", h.resX, h.resY)
	}
	if h.resX%2 != 0 || h.resY%2 != 0 {
		return fmt.Errorf("resolution %dx%d must have even dimensions", h.resX, h.resY)
	}
	size, err := FrameSize(h.format, h.resX, h.resY)
	if err != nil {
		return err
	}
	if h.framesize != size {
		return fmt.Errorf("frame size %d does not match %s %dx%d (%d)", h.framesize, h.format, h.resX, h.resY, size)
	}
	return nil
}

// ReadHeaderInfo reads YAML header lines up to the first blank line.
func ReadHeaderInfo(reader *bufio.Reader) (*HeaderInfo, error) {
	var buf bytes.Buffer
	for {
		line, err := reader.ReadString(byte('\n'))
		if err != nil {
			return nil, err
		}
		if strings.Trim(line, " \r") == "\n" {
			break
		}
		buf.WriteString(line)
	}
	h := make(map[string]interface{})
	if err := yaml.Unmarshal(buf.Bytes(), &h); err != nil {
		return nil, err
	}

	info := &HeaderInfo{
		resX:      toInt(h[XResolution]),
		resY:      toInt(h[YResolution]),
		fps:       toInt(h[FPS]),
		framesize: toInt(h[Size]),
		format:    PixelFormat(toStr(h[Format])),
		brand:     toStr(h[Brand]),
		model:     toStr(h[Model]),
	}
	if info.framesize == 0 {
		// Older senders leave the size out.
		info.framesize, _ = FrameSize(info.format, info.resX, info.resY)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// WriteHeaderInfo writes h followed by the blank terminating line.
func WriteHeaderInfo(w io.Writer, h *HeaderInfo) error {
	if h == nil {
		return errors.New("nil header")
	}
	out, err := yaml.Marshal(map[string]interface{}{
		XResolution: h.resX,
		YResolution: h.resY,
		FPS:         h.fps,
		Format:      string(h.format),
		Size:        h.framesize,
		Brand:       h.brand,
		Model:       h.model,
	})
	if err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func toInt(v interface{}) int {
	out, ok := v.(int)
	if !ok {
		return 0
	}
	return out
}

func toStr(v interface{}) string {
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}
