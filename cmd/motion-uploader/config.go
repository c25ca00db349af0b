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
	"log"
	"os"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/TheCacophonyProject/window"
	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/motion-uploader/motion"
	"github.com/TheCacophonyProject/motion-uploader/throttle"
	"github.com/TheCacophonyProject/motion-uploader/upload"
)

type Config struct {
	DeviceName     string                   `yaml:"-"`
	FrameInput     string                   `yaml:"frame-input"`
	OutputDir      string                   `yaml:"output-dir"`
	MetricsAddress string                   `yaml:"metrics-address"`
	WindowStart    string                   `yaml:"window-start"`
	WindowEnd      string                   `yaml:"window-end"`
	Latitude       float64                  `yaml:"latitude"`
	Longitude      float64                  `yaml:"longitude"`
	Motion         motion.Config            `yaml:"motion"`
	Throttler      throttle.ThrottlerConfig `yaml:"throttle"`
	Uploader       upload.UploaderConfig    `yaml:"uploader"`
}

var defaultConfig = Config{
	FrameInput:     "/var/run/motion-frames",
	OutputDir:      "/var/spool/motion-stills",
	MetricsAddress: ":2112",
	Motion:         motion.DefaultConfig(),
	Throttler:      throttle.DefaultThrottlerConfig(),
	Uploader:       upload.DefaultUploaderConfig(),
}

func (conf *Config) Validate() error {
	if conf.FrameInput == "" {
		return errors.New("frame-input must be set")
	}
	if conf.OutputDir == "" {
		return errors.New("output-dir must be set")
	}
	if (conf.WindowStart == "") != (conf.WindowEnd == "") {
		return errors.New("window-start and window-end must both be set")
	}
	if _, err := conf.Window(); err != nil {
		return err
	}
	if err := conf.Motion.Validate(); err != nil {
		return err
	}
	if err := conf.Throttler.Validate(); err != nil {
		return err
	}
	return conf.Uploader.Validate()
}

// Window returns the daily upload window or nil when uploads are
// allowed at any time. Start and end are either a time of day
// ("17:10") or an offset from sunset/sunrise ("-30m") at the
// configured location.
func (conf *Config) Window() (*window.Window, error) {
	if conf.WindowStart == "" && conf.WindowEnd == "" {
		return nil, nil
	}
	return window.New(conf.WindowStart, conf.WindowEnd, conf.Latitude, conf.Longitude)
}

func ParseConfigFiles(filename, configDir string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		log.Printf("%s not found, using defaults", filename)
	} else if err != nil {
		return nil, err
	}

	conf, err := ParseConfig(buf)
	if err != nil {
		return nil, err
	}

	if configDir != "" {
		conf.DeviceName, err = readDeviceName(configDir)
		if err != nil {
			return nil, err
		}
	}
	return conf, nil
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

func readDeviceName(configDir string) (string, error) {
	configRW, err := goconfig.New(configDir)
	if err != nil {
		return "", err
	}
	var deviceConfig goconfig.Device
	if err := configRW.Unmarshal(goconfig.DeviceKey, &deviceConfig); err != nil {
		return "", err
	}
	return deviceConfig.Name, nil
}
