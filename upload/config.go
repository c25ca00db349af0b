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

package upload

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// The server always listens on this port and path; only the host is
// configurable.
const (
	ServerPort = "8080"
	SignalPath = "/signal"
)

type UploaderConfig struct {
	// ServerHost is a host name or IP address without a port. When empty
	// stills are kept in the output directory instead.
	ServerHost        string        `yaml:"server-host"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxBytesPerSecond int64         `yaml:"max-bytes-per-second"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	// CaptureQuality is the JPEG quality stills are captured at.
	CaptureQuality int `yaml:"capture-quality"`
}

func DefaultUploaderConfig() UploaderConfig {
	return UploaderConfig{
		ServerHost:     "192.168.0.155",
		Timeout:        30 * time.Second,
		CaptureQuality: 90,
	}
}

// URL returns the address stills are posted to.
func (conf *UploaderConfig) URL() string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(conf.ServerHost, ServerPort),
		Path:   SignalPath,
	}
	return u.String()
}

func (conf *UploaderConfig) Validate() error {
	if conf.ServerHost != "" {
		if _, _, err := net.SplitHostPort(conf.ServerHost); err == nil {
			return fmt.Errorf("server-host %q should not include a port, %s is always used", conf.ServerHost, ServerPort)
		}
		if _, err := url.Parse(conf.URL()); err != nil {
			return fmt.Errorf("invalid server-host %q: %w", conf.ServerHost, err)
		}
	}
	if conf.Timeout < 0 {
		return errors.New("timeout can't be negative")
	}
	if conf.MaxBytesPerSecond < 0 {
		return errors.New("max-bytes-per-second can't be negative")
	}
	if conf.CaptureQuality < 1 || conf.CaptureQuality > 100 {
		return fmt.Errorf("capture-quality must be between 1 and 100 (got %d)", conf.CaptureQuality)
	}
	if conf.Password != "" && conf.Username == "" {
		return errors.New("password is set but username isn't")
	}
	return nil
}
