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

// Package pipeline ties motion detection to still capture and upload.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/TheCacophonyProject/window"
	"github.com/juju/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TheCacophonyProject/motion-uploader/frame"
	"github.com/TheCacophonyProject/motion-uploader/loglimiter"
	"github.com/TheCacophonyProject/motion-uploader/motion"
	"github.com/TheCacophonyProject/motion-uploader/throttle"
	"github.com/TheCacophonyProject/motion-uploader/upload"
	"github.com/TheCacophonyProject/motion-uploader/yuv"
)

const (
	minLogInterval = time.Minute

	// RotationQuality is the JPEG quality stills are re-encoded at after
	// rotation.
	RotationQuality = 100
)

var (
	promFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "frames_total",
		Help:      "Frames run through motion detection.",
	})
	promMotion = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "motion_events_total",
		Help:      "Frames where motion was detected.",
	})
	promThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "throttled_total",
		Help:      "Motion events not uploaded because of the cooldown.",
	})
	promCaptureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "capture_failures_total",
		Help:      "Stills that could not be captured or rotated.",
	})
	promUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "uploads_total",
		Help:      "Upload attempts by result.",
	}, []string{"result"})
)

// CaptureFunc returns a freshly captured still as JPEG bytes.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// Listener is told about what the pipeline does. MotionDetected is
// called on the frame path and must not block. The other methods are
// called from background goroutines so implementations must be safe for
// concurrent use.
type Listener interface {
	MotionDetected(score int)
	Throttled(remaining time.Duration)
	CaptureFailed(err error)
	Uploaded(size int)
	UploadFailed(err error)
}

type Option func(*Pipeline)

// WithClock sets the time source used for throttle decisions.
func WithClock(clock ratelimit.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

func WithListener(listener Listener) Option {
	return func(p *Pipeline) {
		if listener != nil {
			p.listener = listener
		}
	}
}

// WithWindow limits uploads to a recurring time of day window.
func WithWindow(w *window.Window) Option {
	return func(p *Pipeline) { p.window = w }
}

func WithRotationQuality(quality int) Option {
	return func(p *Pipeline) { p.quality = quality }
}

func New(detector *motion.Detector, cooldown *throttle.Throttle, uploader upload.Uploader, opts ...Option) *Pipeline {
	p := &Pipeline{
		detector: detector,
		throttle: cooldown,
		uploader: uploader,
		clock:    throttle.RealClock{},
		listener: nullListener{},
		quality:  RotationQuality,
		log:      loglimiter.New(minLogInterval),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.window != nil {
		p.window.Now = p.clock.Now
	}
	return p
}

// Pipeline runs every frame through the motion detector and, when motion
// is seen and the cooldown allows, captures, rotates and uploads a still.
type Pipeline struct {
	mu       sync.Mutex
	detector *motion.Detector
	throttle *throttle.Throttle
	uploader upload.Uploader
	clock    ratelimit.Clock
	listener Listener
	window   *window.Window
	quality  int
	log      *loglimiter.LogLimiter
	wg       sync.WaitGroup
}

// OnFrame processes a single frame. It never waits for capture, upload
// or cooldown events, which run on their own goroutines.
func (p *Pipeline) OnFrame(ctx context.Context, f *frame.Frame, capture CaptureFunc) {
	promFrames.Inc()

	res, err := p.observe(f.Luma())
	if err != nil {
		p.log.Printf("motion detection failed: %v", err)
		return
	}
	if !res.MotionDetected {
		return
	}
	promMotion.Inc()
	p.listener.MotionDetected(res.Score)

	if p.window != nil && !p.window.Active() {
		p.log.Print("motion detected but outside of upload window")
		return
	}

	now := p.clock.Now()
	if !p.throttle.TryAcquire(now) {
		promThrottled.Inc()
		p.log.Print("upload blocked by cooldown")
		remaining := p.throttle.Remaining(now)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.listener.Throttled(remaining)
		}()
		return
	}

	log.Printf("motion detected (score %d), capturing still", res.Score)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.captureAndUpload(ctx, capture)
	}()
}

// observe feeds luma to the detector. A frame of a different size starts
// a new baseline.
func (p *Pipeline) observe(luma []byte) (motion.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.detector.Observe(luma)
	var mismatch *motion.FrameSizeMismatchError
	if errors.As(err, &mismatch) {
		log.Printf("%v, restarting motion detection", err)
		p.detector.Reset()
		return p.detector.Observe(luma)
	}
	return res, err
}

func (p *Pipeline) captureAndUpload(ctx context.Context, capture CaptureFunc) {
	still, err := capture(ctx)
	if err == nil {
		still, err = yuv.Rotate90(still, p.quality)
	}
	if err != nil {
		promCaptureFailures.Inc()
		log.Printf("failed to capture still: %v", err)
		p.listener.CaptureFailed(err)
		return
	}

	if err := p.uploader.Upload(ctx, still); err != nil {
		promUploads.WithLabelValues("failed").Inc()
		log.Printf("failed to upload still: %v", err)
		p.listener.UploadFailed(err)
		return
	}
	promUploads.WithLabelValues("ok").Inc()
	log.Printf("uploaded still (%d bytes)", len(still))
	p.listener.Uploaded(len(still))
}

// Wait blocks until all in flight captures and uploads have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

type nullListener struct{}

func (nullListener) MotionDetected(int) {}

func (nullListener) Throttled(time.Duration) {}

func (nullListener) CaptureFailed(error) {}

func (nullListener) Uploaded(int) {}

func (nullListener) UploadFailed(error) {}
