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

package motion

import "fmt"

type Config struct {
	// Sensitivity is the score a frame must exceed to count as motion.
	Sensitivity int `yaml:"sensitivity"`
	// SamplingStride is the distance between compared luma bytes.
	SamplingStride int  `yaml:"sampling-stride"`
	Verbose        bool `yaml:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		Sensitivity:    10000,
		SamplingStride: 500,
	}
}

// InvalidConfigError reports a setting that can't be used.
type InvalidConfigError struct {
	Setting string
	Value   int
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("%s must be positive (got %d)", e.Setting, e.Value)
}

func (conf *Config) Validate() error {
	if conf.SamplingStride < 1 {
		return &InvalidConfigError{Setting: "sampling-stride", Value: conf.SamplingStride}
	}
	if conf.Sensitivity < 1 {
		return &InvalidConfigError{Setting: "sensitivity", Value: conf.Sensitivity}
	}
	return nil
}
