package transport

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"gotest.tools/v3/assert"

	"github.com/artifex-pm/artifexctl/internal/cachepath"
)

func TestDownloadWritesBodyAndVerifiesMD5(t *testing.T) {
	body := []byte("package contents")
	sum := md5.Sum(body)
	expected := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dst := cachepath.New(filepath.Join(t.TempDir(), "pkg.tar.bz2"))
	c := NewClient(hclog.NewNullLogger(), 5*time.Second)

	var lastProgress float64
	err := c.Download(context.Background(), srv.URL, dst, expected, int64(len(body)), func(f float64) {
		lastProgress = f
	})
	assert.NilError(t, err)
	assert.Equal(t, lastProgress, 1.0)

	got, err := dst.ReadFile()
	assert.NilError(t, err)
	assert.Equal(t, string(got), string(body))
}

func TestDownloadFailsOnMD5Mismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("actual bytes"))
	}))
	defer srv.Close()

	dst := cachepath.New(filepath.Join(t.TempDir(), "pkg.tar.bz2"))
	c := NewClient(hclog.NewNullLogger(), 5*time.Second)

	err := c.Download(context.Background(), srv.URL, dst, "0000000000000000000000000000000", 0, nil)
	assert.ErrorContains(t, err, "integrity mismatch")
	assert.Assert(t, !dst.FileExists())
}

func TestDownloadCopiesFileURLAndVerifiesMD5(t *testing.T) {
	body := []byte("cached tarball bytes")
	sum := md5.Sum(body)
	expected := hex.EncodeToString(sum[:])

	src := cachepath.New(filepath.Join(t.TempDir(), "src.tar.bz2"))
	assert.NilError(t, src.WriteFile(body, 0644))

	dst := cachepath.New(filepath.Join(t.TempDir(), "pkg.tar.bz2"))
	c := NewClient(hclog.NewNullLogger(), 5*time.Second)

	err := c.Download(context.Background(), "file://"+src.ToString(), dst, expected, int64(len(body)), nil)
	assert.NilError(t, err)

	got, err := dst.ReadFile()
	assert.NilError(t, err)
	assert.Equal(t, string(got), string(body))
}

func TestDownloadFailsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dst := cachepath.New(filepath.Join(t.TempDir(), "pkg.tar.bz2"))
	c := NewClient(hclog.NewNullLogger(), 5*time.Second)

	err := c.Download(context.Background(), srv.URL, dst, "", 0, nil)
	assert.ErrorContains(t, err, "unexpected status")
}
