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
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func testStager() *Stager {
	log := logrus.New()
	log.Out = ioutil.Discard
	s := NewStager(log)
	s.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

// testBucket creates a file bucket in the working directory.
func testBucket(t *testing.T, name string) *blob.Bucket {
	t.Helper()
	if err := os.MkdirAll(name, 0755); err != nil {
		t.Fatal(err)
	}
	bucket, err := OpenBucket(context.Background(), "file://"+name)
	if err != nil {
		t.Fatal(err)
	}
	return bucket
}

func writeTestBlob(t *testing.T, bucket *blob.Bucket, key string, data []byte) {
	t.Helper()
	ctx := context.Background()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readTestBlob(t *testing.T, bucket *blob.Bucket, key string) []byte {
	t.Helper()
	r, err := bucket.NewReader(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	b, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestIsBlob(t *testing.T) {
	for path, want := range map[string]bool{
		"gs://bucket/a.shp":  true,
		"s3://bucket/a.shp":  true,
		"file://bucket/a":    true,
		"http://host/a.shp":  false,
		"/home/user/a.shp":   false,
		"relative/input.shp": false,
	} {
		if have := IsBlob(path); have != want {
			t.Errorf("IsBlob(%q) = %v, want %v", path, have, want)
		}
	}
}

func TestExpandShp(t *testing.T) {
	want := []string{"gs://b/roads.shp", "gs://b/roads.dbf", "gs://b/roads.shx", "gs://b/roads.prj"}
	if diff := cmp.Diff(want, expandShp("gs://b/roads.shp")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"out.ncf"}, expandShp("out.ncf")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestStagerLocal(t *testing.T) {
	s := testStager()
	defer s.Close()
	for _, path := range []string{"/dev/null", "/blah/test/"} {
		have, err := s.Input(context.Background(), path)
		if err != nil {
			t.Fatal(err)
		}
		if have != path {
			t.Errorf("have %s, want %s", have, path)
		}
		if have, _ := s.Output(path); have != path {
			t.Errorf("have %s, want %s", have, path)
		}
	}
}

func TestStagerBlob(t *testing.T) {
	const bucketDir = "testbucket"
	defer os.RemoveAll(bucketDir)
	bucket := testBucket(t, bucketDir)
	files := map[string][]byte{
		"lines.shp": []byte("shp data"),
		"lines.dbf": []byte("dbf data"),
		"lines.shx": []byte("shx data"),
	}
	for k, v := range files {
		writeTestBlob(t, bucket, k, v)
	}

	s := testStager()
	defer s.Close()
	ctx := context.Background()
	local, err := s.Input(ctx, "file://"+bucketDir+"/lines.shp")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(local) != "lines.shp" {
		t.Errorf("have local path %s, want a file named lines.shp", local)
	}
	for k, v := range files {
		have, err := ioutil.ReadFile(filepath.Join(filepath.Dir(local), k))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(have, v) {
			t.Errorf("%s: have %q, want %q", k, have, v)
		}
	}

	out, err := s.Output("file://" + bucketDir + "/raster.ncf")
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(out, []byte("raster data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Upload(ctx); err != nil {
		t.Fatal(err)
	}
	if have := readTestBlob(t, bucket, "raster.ncf"); string(have) != "raster data" {
		t.Errorf("uploaded %q, want %q", have, "raster data")
	}

	dir := filepath.Dir(local)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("staging directory %s was not removed", dir)
	}
}

func TestStagerBlobMissing(t *testing.T) {
	const bucketDir = "testbucket_missing"
	defer os.RemoveAll(bucketDir)
	testBucket(t, bucketDir)
	s := testStager()
	defer s.Close()
	if _, err := s.Input(context.Background(), "file://"+bucketDir+"/missing.shp"); err == nil {
		t.Error("expected an error")
	}
}

func TestStagerUploadRetry(t *testing.T) {
	s := testStager()
	defer s.Close()
	var attempts int
	log := logrus.New()
	log.Out = ioutil.Discard
	log.Hooks.Add(countHook{&attempts})
	s.Log = log

	out, err := s.Output("file://bucket_that_does_not_exist/raster.ncf")
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(out, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Upload(context.Background()); err == nil {
		t.Error("expected an error")
	}
	if attempts != maxUploadRetries {
		t.Errorf("have %d retries, want %d", attempts, maxUploadRetries)
	}
}

// countHook counts warnings.
type countHook struct{ n *int }

func (h countHook) Levels() []logrus.Level { return []logrus.Level{logrus.WarnLevel} }
func (h countHook) Fire(*logrus.Entry) error {
	*h.n++
	return nil
}

func TestStagerHTTP(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"roads.shp", "roads.dbf", "roads.shx"} {
		if err := ioutil.WriteFile(filepath.Join(dir, f), []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	s := testStager()
	defer s.Close()
	local, err := s.Input(context.Background(), srv.URL+"/roads.shp")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(local, "roads.shp") {
		t.Errorf("have %s, want tempDir/roads.shp", local)
	}
	b, err := ioutil.ReadFile(strings.TrimSuffix(local, ".shp") + ".dbf")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "roads.dbf" {
		t.Errorf("have %q, want %q", b, "roads.dbf")
	}

	if _, err := s.Input(context.Background(), srv.URL+"/missing.shp"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
