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
	"fmt"
	"log"
	"net"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/blackjack/webcam"
	"github.com/coreos/go-systemd/daemon"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/motion-uploader/frame"
)

const (
	frameTimeoutSecs = 5
	maxTimeouts      = 3
	sdNotifyInterval = 5 * time.Second
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	Quick      bool   `arg:"-q,--quick" help:"don't cycle camera power on startup"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/camerad.yaml"
	arg.MustParse(&args)
	return args
}

type nextFrameErr struct {
	cause error
}

func (e *nextFrameErr) Error() string {
	return e.cause.Error()
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	log.Print("host initialisation")
	if _, err := host.Init(); err != nil {
		return err
	}

	if !args.Quick {
		if err := cycleCameraPower(conf.PowerPin); err != nil {
			return err
		}
	}

	for {
		err := runCamera(conf)
		var frameErr *nextFrameErr
		if !errors.As(err, &frameErr) {
			return err
		}
		log.Printf("camera error: %v", err)

		if err := cycleCameraPower(conf.PowerPin); err != nil {
			return err
		}
	}
}

func runCamera(conf *Config) error {
	log.Print("opening camera")
	cam, err := webcam.Open(conf.Device)
	if err != nil {
		return err
	}
	defer cam.Close()

	format, err := chooseFormat(cam.GetSupportedFormats(), frame.PixelFormat(conf.PixelFormat))
	if err != nil {
		return err
	}
	_, w, h, err := cam.SetImageFormat(fourCCs[format], uint32(conf.Width), uint32(conf.Height))
	if err != nil {
		return err
	}
	if err := cam.SetFramerate(conf.FrameRate); err != nil {
		log.Printf("could not set frame rate: %v", err)
	}

	header, err := frame.NewHeaderInfo(int(w), int(h), int(conf.FrameRate), format, conf.Brand, conf.Model)
	if err != nil {
		return err
	}
	log.Printf("capturing %dx%d %s", header.ResX(), header.ResY(), format)

	log.Print("dialing frame output socket")
	conn, err := net.Dial("unix", conf.FrameOutput)
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := frame.NewWriter(conn, header)
	if err != nil {
		return err
	}

	if err := cam.StartStreaming(); err != nil {
		return err
	}
	defer cam.StopStreaming()

	log.Print("reading frames")
	timeouts := 0
	lastNotify := time.Now()
	for {
		err := cam.WaitForFrame(frameTimeoutSecs)
		switch err.(type) {
		case nil:
			timeouts = 0
		case *webcam.Timeout:
			if timeouts++; timeouts >= maxTimeouts {
				return &nextFrameErr{err}
			}
			continue
		default:
			return &nextFrameErr{err}
		}

		raw, err := cam.ReadFrame()
		if err != nil {
			return &nextFrameErr{err}
		}
		data, ok := frameData(raw, header.FrameSize())
		if !ok {
			log.Printf("short frame from camera: %d bytes", len(raw))
			continue
		}

		if time.Since(lastNotify) >= sdNotifyInterval {
			daemon.SdNotify(false, "WATCHDOG=1")
			lastNotify = time.Now()
		}

		if err := out.WriteFrame(data); err != nil {
			return err
		}
	}
}

func logConfig(conf *Config) {
	log.Printf("device: %s", conf.Device)
	log.Printf("resolution: %dx%d at %.1f fps", conf.Width, conf.Height, conf.FrameRate)
	log.Printf("power pin: %s", conf.PowerPin)
	log.Printf("frame output: %s", conf.FrameOutput)
}

func cycleCameraPower(pinName string) error {
	if pinName == "" {
		return nil
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("unknown camera power pin %q", pinName)
	}

	log.Print("turning camera power off")
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set camera power pin low: %v", err)
	}
	time.Sleep(2 * time.Second)

	log.Print("turning camera power on")
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("failed to set camera power pin high: %v", err)
	}

	log.Print("waiting for camera startup")
	time.Sleep(8 * time.Second)
	log.Print("camera should be ready")
	return nil
}
