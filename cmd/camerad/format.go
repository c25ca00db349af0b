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

package main

import (
	"fmt"

	"github.com/blackjack/webcam"

	"github.com/TheCacophonyProject/motion-uploader/frame"
)

// V4L2 four character codes for the 4:2:0 formats the uploader reads.
var fourCCs = map[frame.PixelFormat]webcam.PixelFormat{
	frame.I420: 0x32315559, // YU12
	frame.NV12: 0x3231564E, // NV12
	frame.NV21: 0x3132564E, // NV21
}

// Tried in this order when no format is configured.
var formatPreference = []frame.PixelFormat{frame.NV21, frame.NV12, frame.I420}

// chooseFormat picks a format the camera supports. preferred may be empty.
func chooseFormat(supported map[webcam.PixelFormat]string, preferred frame.PixelFormat) (frame.PixelFormat, error) {
	candidates := formatPreference
	if preferred != "" {
		candidates = []frame.PixelFormat{preferred}
	}
	for _, f := range candidates {
		if _, ok := supported[fourCCs[f]]; ok {
			return f, nil
		}
	}
	var names []string
	for _, name := range supported {
		names = append(names, name)
	}
	if preferred != "" {
		return "", fmt.Errorf("camera doesn't support %s (has %v)", preferred, names)
	}
	return "", fmt.Errorf("camera has no 4:2:0 format (has %v)", names)
}

// frameData trims driver padding from a captured buffer. It returns false
// if the buffer is too short to hold a frame.
func frameData(raw []byte, frameSize int) ([]byte, bool) {
	if len(raw) < frameSize {
		return nil, false
	}
	return raw[:frameSize], true
}
