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
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/icholy/digest"
	"github.com/juju/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Multipart form details the server expects.
const (
	FormField   = "file"
	FileName    = "screenshot.jpeg"
	ContentType = "image/jpeg"

	maxErrorBody = 512
)

var (
	promUploadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "motionuploader",
			Name:      "upload_request_duration_seconds",
			Help:      "A histogram of request latencies to the upload server.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)
	promUploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "motionuploader",
		Name:      "uploaded_bytes_total",
		Help:      "The number of JPEG bytes accepted by the upload server.",
	})
)

// HTTPUploader posts stills as a multipart form.
type HTTPUploader struct {
	url        string
	client     *http.Client
	maxRate    int64
	deviceName string
}

// NewHTTPUploader returns an uploader for the server in conf. deviceName
// is sent along so the server can tell cameras apart; it may be empty.
func NewHTTPUploader(conf *UploaderConfig, deviceName string) *HTTPUploader {
	return newHTTPUploader(conf.URL(), conf, deviceName)
}

func newHTTPUploader(url string, conf *UploaderConfig, deviceName string) *HTTPUploader {
	var transport http.RoundTripper = http.DefaultTransport
	if conf.Username != "" {
		transport = &digest.Transport{
			Username:  conf.Username,
			Password:  conf.Password,
			Transport: transport,
		}
	}

	return &HTTPUploader{
		url: url,
		client: &http.Client{
			Timeout:   conf.Timeout,
			Transport: promhttp.InstrumentRoundTripperDuration(promUploadDuration, transport),
		},
		maxRate:    conf.MaxBytesPerSecond,
		deviceName: deviceName,
	}
}

func (u *HTTPUploader) URL() string {
	return u.url
}

// Upload sends jpeg once. Anything other than a 2xx response is an *Error.
func (u *HTTPUploader) Upload(ctx context.Context, jpeg []byte) error {
	body, contentType, err := multipartBody(jpeg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, u.bodyReader(body))
	if err != nil {
		return err
	}
	// Needed so the body can be sent again after a digest challenge.
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(u.bodyReader(body)), nil
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	if u.deviceName != "" {
		req.Header.Set("X-Device-Name", u.deviceName)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	promUploadedBytes.Add(float64(len(jpeg)))
	return nil
}

func (u *HTTPUploader) bodyReader(body []byte) io.Reader {
	r := bytes.NewReader(body)
	if u.maxRate <= 0 {
		return r
	}
	return ratelimit.Reader(r, ratelimit.NewBucketWithRate(float64(u.maxRate), u.maxRate))
}

func multipartBody(jpeg []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+FormField+`"; filename="`+FileName+`"`)
	h.Set("Content-Type", ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
