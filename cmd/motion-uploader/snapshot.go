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
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheCacophonyProject/motion-uploader/frame"
	"github.com/TheCacophonyProject/motion-uploader/pipeline"
	"github.com/TheCacophonyProject/motion-uploader/yuv"
)

const (
	snapshotName          = "still.jpeg"
	allowedSnapshotPeriod = 500 * time.Millisecond
)

var errNoFrames = errors.New("no frames yet")

func newSnapshotter(dir string, latest *frame.Latest, quality int) *snapshotter {
	return &snapshotter{
		dir:     dir,
		latest:  latest,
		quality: quality,
		now:     time.Now,
	}
}

type snapshotter struct {
	mu       sync.Mutex
	dir      string
	latest   *frame.Latest
	quality  int
	previous time.Time
	now      func() time.Time
}

// Capture encodes the most recent frame. It is the pipeline's source of
// stills.
func (s *snapshotter) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := s.latest.CopyRecent()
	if f == nil {
		return nil, errNoFrames
	}
	return yuv.FrameToJPEG(f, s.quality)
}

// rotated returns the most recent frame the right way up.
func (s *snapshotter) rotated(ctx context.Context) ([]byte, error) {
	still, err := s.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return yuv.Rotate90(still, pipeline.RotationQuality)
}

// Take saves the most recent frame to the output directory. Requests
// arriving faster than allowedSnapshotPeriod are ignored.
func (s *snapshotter) Take() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Sub(s.previous) < allowedSnapshotPeriod {
		return nil
	}

	still, err := s.rotated(context.Background())
	if err != nil {
		return err
	}

	filename := filepath.Join(s.dir, snapshotName)
	temp := filename + ".temp"
	if err := ioutil.WriteFile(temp, still, 0644); err != nil {
		return err
	}
	if err := os.Rename(temp, filename); err != nil {
		os.Remove(temp)
		return err
	}

	// the time will be changed only if the attempt is successful
	s.previous = s.now()
	return nil
}

func (s *snapshotter) Delete() {
	if err := os.Remove(filepath.Join(s.dir, snapshotName)); err != nil && !os.IsNotExist(err) {
		log.Printf("error deleting snapshot image: %v", err)
	}
}

func (s *snapshotter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	still, err := s.rotated(r.Context())
	if errors.Is(err, errNoFrames) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(still)
}
