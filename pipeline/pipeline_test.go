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

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/TheCacophonyProject/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/motion-uploader/frame"
	"github.com/TheCacophonyProject/motion-uploader/motion"
	"github.com/TheCacophonyProject/motion-uploader/throttle"
	"github.com/TheCacophonyProject/motion-uploader/yuv"
)

const (
	testWidth  = 32
	testHeight = 24
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testUploader struct {
	mu      sync.Mutex
	uploads [][]byte
	err     error
}

func (u *testUploader) Upload(_ context.Context, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.uploads = append(u.uploads, data)
	return nil
}

func (u *testUploader) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

type testListener struct {
	mu             sync.Mutex
	motion         []int
	throttled      int
	captureFailed  []error
	uploaded       []int
	uploadFailures []error
}

func (l *testListener) MotionDetected(score int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.motion = append(l.motion, score)
}

func (l *testListener) Throttled(time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.throttled++
}

func (l *testListener) CaptureFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.captureFailed = append(l.captureFailed, err)
}

func (l *testListener) Uploaded(size int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uploaded = append(l.uploaded, size)
}

func (l *testListener) UploadFailed(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uploadFailures = append(l.uploadFailures, err)
}

type testPipeline struct {
	*Pipeline
	clock    *testClock
	uploader *testUploader
	listener *testListener
	tfm      *frame.TestFrameMaker
}

func newTestPipeline(t *testing.T, opts ...Option) *testPipeline {
	d, err := motion.NewDetector(motion.Config{Sensitivity: 1000, SamplingStride: 1})
	require.NoError(t, err)
	thr, err := throttle.New(5 * time.Second)
	require.NoError(t, err)

	tp := &testPipeline{
		clock:    &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		uploader: new(testUploader),
		listener: new(testListener),
		tfm:      frame.MakeTestFrameMaker(testWidth, testHeight, frame.NV21),
	}
	opts = append([]Option{WithClock(tp.clock), WithListener(tp.listener)}, opts...)
	tp.Pipeline = New(d, thr, tp.uploader, opts...)
	return tp
}

// stillCapture returns a landscape JPEG of a background frame.
func stillCapture(t *testing.T) CaptureFunc {
	data, err := yuv.FrameToJPEG(frame.MakeTestFrameMaker(testWidth, testHeight, frame.NV21).BackgroundFrame(), 90)
	require.NoError(t, err)
	return func(context.Context) ([]byte, error) {
		return data, nil
	}
}

// countingCapture wraps capture and counts how often it's called.
func countingCapture(capture CaptureFunc, calls *int, mu *sync.Mutex) CaptureFunc {
	return func(ctx context.Context) ([]byte, error) {
		mu.Lock()
		*calls++
		mu.Unlock()
		return capture(ctx)
	}
}

func TestFirstFrameNeverCaptures(t *testing.T) {
	tp := newTestPipeline(t)
	var calls int
	var mu sync.Mutex
	capture := countingCapture(stillCapture(t), &calls, &mu)

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), capture)
	tp.Wait()

	assert.Equal(t, 0, calls)
	assert.Empty(t, tp.listener.motion)
	assert.Equal(t, 0, tp.uploader.Count())
}

func TestStaticSceneNeverCaptures(t *testing.T) {
	tp := newTestPipeline(t)
	var calls int
	var mu sync.Mutex
	capture := countingCapture(stillCapture(t), &calls, &mu)

	for i := 0; i < 10; i++ {
		tp.OnFrame(context.Background(), tp.tfm.BackgroundFrame(), capture)
		tp.clock.Advance(time.Second)
	}
	tp.Wait()

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, tp.uploader.Count())
}

func TestMotionUploadsRotatedStill(t *testing.T) {
	tp := newTestPipeline(t)

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.Wait()

	require.Equal(t, 1, tp.uploader.Count())
	assert.Equal(t, []int{78 * 60}, tp.listener.motion)
	assert.Equal(t, []int{len(tp.uploader.uploads[0])}, tp.listener.uploaded)

	img, err := jpeg.Decode(bytes.NewReader(tp.uploader.uploads[0]))
	require.NoError(t, err)
	assert.Equal(t, testHeight, img.Bounds().Dx())
	assert.Equal(t, testWidth, img.Bounds().Dy())
}

func TestCooldownBlocksRepeatedMotion(t *testing.T) {
	tp := newTestPipeline(t)
	var calls int
	var mu sync.Mutex
	capture := countingCapture(stillCapture(t), &calls, &mu)

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), capture)
	for i := 0; i < 5; i++ {
		tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), capture)
		tp.clock.Advance(time.Second)
	}
	tp.Wait()

	// Motion at 0s is uploaded, 1s to 4s are inside the cooldown.
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tp.uploader.Count())
	assert.Equal(t, 4, tp.listener.throttled)

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), capture)
	tp.Wait()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, tp.uploader.Count())
}

func TestNoDoubleDispatchWhileCaptureInFlight(t *testing.T) {
	tp := newTestPipeline(t)
	still := stillCapture(t)

	started := make(chan int, 2)
	release := []chan struct{}{make(chan struct{}), make(chan struct{})}
	blocking := func(i int) CaptureFunc {
		return func(ctx context.Context) ([]byte, error) {
			started <- i
			<-release[i]
			return still(ctx)
		}
	}

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(0))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(0))
	assert.Equal(t, 0, <-started)

	// A second motion event 10ms later, while the first capture is still
	// running, must not start another capture.
	tp.clock.Advance(10 * time.Millisecond)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(1))
	close(release[1])
	close(release[0])
	tp.Wait()

	assert.Len(t, started, 0)
	assert.Equal(t, 1, tp.uploader.Count())
	assert.Equal(t, 1, tp.listener.throttled)
}

func TestOutOfOrderCapturesEachUploadOnce(t *testing.T) {
	tp := newTestPipeline(t)
	still := stillCapture(t)

	release := []chan struct{}{make(chan struct{}), make(chan struct{})}
	blocking := func(i int) CaptureFunc {
		return func(ctx context.Context) ([]byte, error) {
			<-release[i]
			return still(ctx)
		}
	}

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(0))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(0))
	tp.clock.Advance(5 * time.Second)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), blocking(1))

	// The later capture finishes first.
	close(release[1])
	close(release[0])
	tp.Wait()

	assert.Equal(t, 2, tp.uploader.Count())
	assert.Equal(t, 0, tp.listener.throttled)
}

func TestCaptureFailureDoesNotStopPipeline(t *testing.T) {
	tp := newTestPipeline(t)
	captureErr := errors.New("camera busy")
	failing := func(context.Context) ([]byte, error) { return nil, captureErr }

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), failing)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), failing)
	tp.Wait()
	assert.Equal(t, []error{captureErr}, tp.listener.captureFailed)
	assert.Equal(t, 0, tp.uploader.Count())

	// The failed attempt used up the cooldown.
	tp.clock.Advance(5 * time.Second)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.Wait()
	assert.Equal(t, 1, tp.uploader.Count())
}

func TestInvalidStillIsReportedAsCaptureFailure(t *testing.T) {
	tp := newTestPipeline(t)
	garbage := func(context.Context) ([]byte, error) { return []byte("not a jpeg"), nil }

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), garbage)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), garbage)
	tp.Wait()

	assert.Len(t, tp.listener.captureFailed, 1)
	assert.Equal(t, 0, tp.uploader.Count())
}

func TestUploadFailureIsReported(t *testing.T) {
	tp := newTestPipeline(t)
	uploadErr := errors.New("connection refused")
	tp.uploader.err = uploadErr

	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.Wait()

	assert.Equal(t, []error{uploadErr}, tp.listener.uploadFailures)
	assert.Empty(t, tp.listener.uploaded)
}

func TestFrameSizeChangeStartsNewBaseline(t *testing.T) {
	tp := newTestPipeline(t)
	var calls int
	var mu sync.Mutex
	capture := countingCapture(stillCapture(t), &calls, &mu)

	tp.OnFrame(context.Background(), tp.tfm.BackgroundFrame(), capture)

	bigger := frame.MakeTestFrameMaker(testWidth*2, testHeight*2, frame.NV21)
	tp.OnFrame(context.Background(), bigger.MovingBoxFrame(), capture)
	tp.Wait()
	assert.Equal(t, 0, calls)

	tp.OnFrame(context.Background(), bigger.MovingBoxFrame(), capture)
	tp.Wait()
	assert.Equal(t, 1, calls)
}

func TestOutsideWindowSkipsUpload(t *testing.T) {
	w, err := window.New("13:00", "14:00", 0, 0)
	require.NoError(t, err)

	// The pipeline clock starts at 12:00 and drives the window.
	tp := newTestPipeline(t, WithWindow(w))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.Wait()
	assert.Len(t, tp.listener.motion, 1)
	assert.Equal(t, 0, tp.uploader.Count())

	tp.clock.Advance(90 * time.Minute)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), stillCapture(t))
	tp.Wait()
	assert.Equal(t, 1, tp.uploader.Count())
}

type blockingListener struct {
	testListener
	release chan struct{}
}

func (l *blockingListener) Throttled(remaining time.Duration) {
	<-l.release
	l.testListener.Throttled(remaining)
}

func TestSlowThrottledListenerDoesNotBlockFrames(t *testing.T) {
	listener := &blockingListener{release: make(chan struct{})}
	tp := newTestPipeline(t, WithListener(listener))
	capture := stillCapture(t)

	tp.OnFrame(context.Background(), tp.tfm.BackgroundFrame(), capture)
	tp.OnFrame(context.Background(), tp.tfm.MovingBoxFrame(), capture)

	done := make(chan struct{})
	go func() {
		tp.OnFrame(context.Background(), tp.tfm.BackgroundFrame(), capture)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("OnFrame blocked on the listener")
	}

	close(listener.release)
	tp.Wait()
	assert.Equal(t, 1, tp.uploader.Count())
	assert.Equal(t, 1, listener.throttled)
	assert.Len(t, listener.motion, 2)
}

func TestNilListener(t *testing.T) {
	d, err := motion.NewDetector(motion.DefaultConfig())
	require.NoError(t, err)
	thr, err := throttle.New(time.Second)
	require.NoError(t, err)

	p := New(d, thr, new(testUploader), WithListener(nil))
	assert.Equal(t, nullListener{}, p.listener)
	assert.Equal(t, RotationQuality, p.quality)
}
