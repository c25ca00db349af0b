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
	"errors"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/motion-uploader/frame"
)

type Config struct {
	Device      string  `yaml:"device"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	FrameRate   float32 `yaml:"frame-rate"`
	PixelFormat string  `yaml:"pixel-format"`
	PowerPin    string  `yaml:"power-pin"`
	FrameOutput string  `yaml:"frame-output"`
	Brand       string  `yaml:"brand"`
	Model       string  `yaml:"model"`
}

var defaultConfig = Config{
	Device:      "/dev/video0",
	Width:       640,
	Height:      480,
	FrameRate:   10,
	FrameOutput: "/var/run/motion-frames",
}

func (conf *Config) Validate() error {
	if conf.Width <= 0 || conf.Height <= 0 || conf.Width%2 != 0 || conf.Height%2 != 0 {
		return errors.New("width and height must be positive and even")
	}
	if conf.FrameRate <= 0 {
		return errors.New("frame-rate must be positive")
	}
	if conf.PixelFormat != "" {
		if _, ok := fourCCs[frame.PixelFormat(conf.PixelFormat)]; !ok {
			return errors.New("pixel-format must be one of I420, NV12 or NV21")
		}
	}
	return nil
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
