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

// Package events reports what the uploader does to the Cacophony event
// queue over D-Bus.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/godbus/dbus"
	"github.com/juju/ratelimit"
)

const (
	MotionUpload    = "motion-upload"
	UploadThrottled = "upload-throttled"
	UploadFailed    = "upload-failed"
	CaptureFailed   = "capture-failed"

	// Throttled uploads are reported at most this often.
	throttledInterval = 10 * time.Minute
)

// QueueFunc queues an event with JSON details and a timestamp.
type QueueFunc func(details []byte, ts time.Time) error

// DBusQueue sends events to the org.cacophony.Events service.
func DBusQueue(details []byte, ts time.Time) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	obj := conn.Object("org.cacophony.Events", "/org/cacophony/Events")
	return obj.Call("org.cacophony.Events.Queue", 0, details, ts.UnixNano()).Err
}

func NewRecorder(queue QueueFunc, clock ratelimit.Clock) *Recorder {
	return &Recorder{
		queue:     queue,
		clock:     clock,
		throttled: ratelimit.NewBucketWithClock(throttledInterval, 1, clock),
	}
}

// Recorder turns pipeline notifications into events.
type Recorder struct {
	queue     QueueFunc
	clock     ratelimit.Clock
	throttled *ratelimit.Bucket
}

func (r *Recorder) MotionDetected(int) {}

func (r *Recorder) Throttled(remaining time.Duration) {
	if r.throttled.TakeAvailable(1) == 0 {
		return
	}
	r.record(UploadThrottled, map[string]interface{}{
		"remaining-secs": remaining.Seconds(),
	})
}

func (r *Recorder) CaptureFailed(err error) {
	r.record(CaptureFailed, map[string]interface{}{"error": err.Error()})
}

func (r *Recorder) Uploaded(size int) {
	r.record(MotionUpload, map[string]interface{}{"bytes": size})
}

func (r *Recorder) UploadFailed(err error) {
	r.record(UploadFailed, map[string]interface{}{"error": err.Error()})
}

func (r *Recorder) record(eventType string, details map[string]interface{}) {
	eventDetails := map[string]interface{}{
		"description": map[string]interface{}{
			"type":    eventType,
			"details": details,
		},
	}
	detailsJSON, err := json.Marshal(&eventDetails)
	if err != nil {
		log.Printf("Could not record %s event: %s", eventType, err)
		return
	}
	if err := r.queue(detailsJSON, r.clock.Now()); err != nil {
		log.Printf("Could not record %s event: %s", eventType, err)
	}
}
