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
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	tempExt    = "jpeg.temp"
	stillExt   = "jpeg"
	nameLayout = "20060102_150405.000"
)

// DirUploader keeps stills in a local directory. It is used when no upload
// server is configured.
type DirUploader struct {
	dir string
	now func() time.Time
}

func NewDirUploader(dir string) (*DirUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := DeleteTempFiles(dir); err != nil {
		return nil, err
	}
	return &DirUploader{dir: dir, now: time.Now}, nil
}

// Upload writes the still under a temporary name and renames it once it
// is complete so readers of the directory never see partial files.
func (u *DirUploader) Upload(ctx context.Context, jpeg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final := filepath.Join(u.dir, u.newStillName())
	temp := final + ".temp"
	if err := writeFile(temp, jpeg); err != nil {
		os.Remove(temp)
		return err
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return err
	}
	log.Printf("saved still: %s", final)
	return nil
}

func (u *DirUploader) newStillName() string {
	return fmt.Sprintf("still_%s.%s", u.now().Format(nameLayout), stillExt)
}

func writeFile(filename string, data []byte) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DeleteTempFiles removes partially written stills left behind by an
// earlier run.
func DeleteTempFiles(dir string) error {
	matches, _ := filepath.Glob(filepath.Join(dir, "*."+tempExt))
	for _, filename := range matches {
		if err := os.Remove(filename); err != nil {
			return err
		}
	}
	return nil
}
