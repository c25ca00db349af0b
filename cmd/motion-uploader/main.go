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
	"context"
	"io"
	"log"
	"net"
	"os"

	goconfig "github.com/TheCacophonyProject/go-config"
	arg "github.com/alexflint/go-arg"

	"github.com/TheCacophonyProject/motion-uploader/events"
	"github.com/TheCacophonyProject/motion-uploader/frame"
	"github.com/TheCacophonyProject/motion-uploader/motion"
	"github.com/TheCacophonyProject/motion-uploader/pipeline"
	"github.com/TheCacophonyProject/motion-uploader/throttle"
	"github.com/TheCacophonyProject/motion-uploader/upload"
)

var version = "<not set>"

type Args struct {
	ConfigFile string `arg:"-c,--config" help:"path to configuration file"`
	ConfigDir  string `arg:"--config-dir" help:"path to the Cacophony device configuration directory"`
	Timestamps bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Verbose    bool   `arg:"-v,--verbose" help:"log every motion score"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/motion-uploader.yaml"
	args.ConfigDir = goconfig.DefaultConfigDir
	arg.MustParse(&args)
	return args
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

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFiles(args.ConfigFile, args.ConfigDir)
	if err != nil {
		return err
	}
	if args.Verbose {
		conf.Motion.Verbose = true
	}
	logConfig(conf)

	if err := os.MkdirAll(conf.OutputDir, 0755); err != nil {
		return err
	}

	latest := new(frame.Latest)
	snapshots := newSnapshotter(conf.OutputDir, latest, conf.Uploader.CaptureQuality)

	log.Println("starting d-bus service")
	if err := startService(snapshots); err != nil {
		return err
	}

	if conf.MetricsAddress != "" {
		startServer(conf.MetricsAddress, newRouter(snapshots))
	}

	uploader, err := newUploader(conf)
	if err != nil {
		return err
	}

	recorder := events.NewRecorder(events.DBusQueue, throttle.RealClock{})

	// The cooldown outlives camera connections so a reconnect can't
	// trigger an early upload.
	cooldown, err := throttle.New(conf.Throttler.Cooldown)
	if err != nil {
		return err
	}

	for {
		// Set up listener for frames sent by camerad.
		os.Remove(conf.FrameInput)
		listener, err := net.Listen("unix", conf.FrameInput)
		if err != nil {
			return err
		}
		log.Print("waiting for camera connection")

		conn, err := listener.Accept()
		if err != nil {
			log.Printf("socket accept failed: %v", err)
			listener.Close()
			continue
		}

		// Prevent concurrent connections.
		listener.Close()

		p, err := newPipeline(conf, cooldown, uploader, recorder)
		if err != nil {
			return err
		}
		err = handleConn(context.Background(), conn, p, latest, snapshots.Capture)
		conn.Close()
		p.Wait()
		latest.Clear()
		snapshots.Delete()
		log.Printf("camera connection ended with: %v", err)
	}
}

// newUploader sends stills to the configured server, or keeps them in
// the output directory when there is none.
func newUploader(conf *Config) (upload.Uploader, error) {
	if conf.Uploader.ServerHost == "" {
		log.Printf("no upload server, saving stills to %s", conf.OutputDir)
		return upload.NewDirUploader(conf.OutputDir)
	}
	return upload.NewHTTPUploader(&conf.Uploader, conf.DeviceName), nil
}

// newPipeline is called for every camera connection so that motion
// detection starts from a fresh baseline.
func newPipeline(conf *Config, cooldown *throttle.Throttle, uploader upload.Uploader, listener pipeline.Listener) (*pipeline.Pipeline, error) {
	detector, err := motion.NewDetector(conf.Motion)
	if err != nil {
		return nil, err
	}
	w, err := conf.Window()
	if err != nil {
		return nil, err
	}
	return pipeline.New(detector, cooldown, uploader,
		pipeline.WithListener(listener),
		pipeline.WithWindow(w),
	), nil
}

func handleConn(ctx context.Context, conn io.Reader, p *pipeline.Pipeline, latest *frame.Latest, capture pipeline.CaptureFunc) error {
	reader, err := frame.NewReader(conn)
	if err != nil {
		return err
	}
	h := reader.Header()
	log.Printf("new camera connection: %s %s, %dx%d %s at %d fps",
		h.Brand(), h.Model(), h.ResX(), h.ResY(), h.PixelFormat(), h.FPS())

	totalFrames := 0
	fps := h.FPS()
	if fps < 1 {
		fps = 1
	}
	for {
		f, err := reader.Next()
		if err != nil {
			return err
		}
		totalFrames++

		if totalFrames%(15*fps) == 0 && totalFrames <= 60*fps || totalFrames%(300*fps) == 0 {
			log.Printf("%d frames for this connection", totalFrames)
		}

		latest.Store(f)
		p.OnFrame(ctx, f, capture)
	}
}

func logConfig(conf *Config) {
	log.Printf("device name: %s", conf.DeviceName)
	log.Printf("frame input: %s", conf.FrameInput)
	log.Printf("output dir: %s", conf.OutputDir)
	log.Printf("motion: %+v", conf.Motion)
	log.Printf("upload cooldown: %s", conf.Throttler.Cooldown)
	if conf.Uploader.ServerHost != "" {
		log.Printf("upload url: %s", conf.Uploader.URL())
	}
	if conf.WindowStart != "" {
		log.Printf("upload window: %s to %s", conf.WindowStart, conf.WindowEnd)
	}
}
