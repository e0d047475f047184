/*
Copyright © 2026 the vecraster authors.
This file is part of vecraster.

vecraster is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

vecraster is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with vecraster.  If not, see <http://www.gnu.org/licenses/>.
*/

package cloud

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/sirupsen/logrus"
)

const maxUploadRetries = 5

// Stager copies remote input files to a local temporary directory and
// local output files to their remote destinations. Local paths are used
// as they are.
type Stager struct {
	// Log receives retry and progress messages.
	Log logrus.FieldLogger

	// Client is used for http downloads.
	Client *http.Client

	// NewBackOff returns the retry policy for uploads. At most
	// maxUploadRetries retries are made.
	NewBackOff func() backoff.BackOff

	dir string

	// uploads is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	uploads [][2]string
}

// NewStager returns a Stager that retries uploads with exponential
// back-off.
func NewStager(log logrus.FieldLogger) *Stager {
	return &Stager{
		Log:        log,
		Client:     http.DefaultClient,
		NewBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// tempDir returns the directory that staged files are kept in, creating
// it if necessary.
func (s *Stager) tempDir() (string, error) {
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := ioutil.TempDir("", "vecraster")
	if err != nil {
		return "", fmt.Errorf("cloud: creating temporary directory: %v", err)
	}
	s.dir = dir
	return dir, nil
}

// Input returns a local path for the file at path. Files at http(s) URLs
// and in blob storage are downloaded first, along with the .dbf, .shx and
// .prj files that accompany a shapefile.
func (s *Stager) Input(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	switch {
	case IsHTTP(path):
		return s.download(path, s.fetchHTTP(ctx))
	case IsBlob(path):
		bucketName, _, err := splitBlob(path)
		if err != nil {
			return "", err
		}
		bucket, err := OpenBucket(ctx, bucketName)
		if err != nil {
			return "", err
		}
		return s.download(path, fetchBlob(ctx, bucket))
	}
	return path, nil
}

// fetcher opens the file at a remote location.
type fetcher func(loc string) (io.ReadCloser, error)

func (s *Stager) fetchHTTP(ctx context.Context) fetcher {
	return func(loc string) (io.ReadCloser, error) {
		req, err := http.NewRequest(http.MethodGet, loc, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.Client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
}

func fetchBlob(ctx context.Context, bucket *blob.Bucket) fetcher {
	return func(loc string) (io.ReadCloser, error) {
		_, key, err := splitBlob(loc)
		if err != nil {
			return nil, err
		}
		r, err := bucket.NewReader(ctx, key)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// download copies path and its companion files into the staging directory
// and returns the local location of path.
func (s *Stager) download(path string, fetch fetcher) (string, error) {
	dir, err := s.tempDir()
	if err != nil {
		return "", err
	}
	files := expandShp(path)
	for i, f := range files {
		local := filepath.Join(dir, baseName(f))
		err := copyFrom(local, f, fetch)
		if err != nil && i > 0 && filepath.Ext(f) == ".prj" {
			s.Log.WithError(err).Debugf("cloud: skipping projection file %s", f)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("cloud: downloading %s: %v", f, err)
		}
		s.Log.WithField("file", f).Debug("cloud: downloaded input")
	}
	return filepath.Join(dir, baseName(files[0])), nil
}

func copyFrom(local, remote string, fetch fetcher) error {
	r, err := fetch(remote)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Output returns a local path for the output file at path. If path is in
// blob storage, the local file is copied there by Upload.
func (s *Stager) Output(path string) (string, error) {
	if !IsBlob(path) {
		return path, nil
	}
	if _, _, err := splitBlob(path); err != nil {
		return "", err
	}
	dir, err := s.tempDir()
	if err != nil {
		return "", err
	}
	local := filepath.Join(dir, "output_"+baseName(path))
	s.uploads = append(s.uploads, [2]string{local, path})
	return local, nil
}

// Upload copies staged output files to blob storage. Failed uploads are
// retried according to s.NewBackOff.
func (s *Stager) Upload(ctx context.Context) error {
	for _, files := range s.uploads {
		local, remote := files[0], files[1]
		err := backoff.RetryNotify(
			func() error {
				return upload(ctx, local, remote)
			},
			backoff.WithMaxRetries(s.NewBackOff(), maxUploadRetries),
			func(err error, d time.Duration) {
				s.Log.WithError(err).Warnf("cloud: uploading %s: retrying in %v", remote, d)
			},
		)
		if err != nil {
			return err
		}
		s.Log.WithField("file", remote).Info("cloud: uploaded output")
	}
	return nil
}

func upload(ctx context.Context, local, remote string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("cloud: opening file '%s' for upload: %v", local, err)
	}
	defer r.Close()
	bucketName, key, err := splitBlob(remote)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("cloud: opening bucket to upload file '%s': %v", remote, err)
	}
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("cloud: opening writer to upload file '%s': %v", remote, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", local, remote, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloud: uploading file '%s' to '%s': %v", local, remote, err)
	}
	return nil
}

// Close removes the staging directory.
func (s *Stager) Close() error {
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise.
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	base := strings.TrimSuffix(filename, ".shp")
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, base+newExt)
	}
	return o
}

// baseName returns the last element of a local path or URL.
func baseName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
