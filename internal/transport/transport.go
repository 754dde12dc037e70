// Package transport implements the download(url, dst, expected_md5)
// collaborator named in spec §6. It is intentionally narrow: a plain
// checksum-verified byte-faithful fetch, with no artifact-signing or
// team/remote-cache concepts (those belong to the teacher's original
// client package, which this domain does not need — see DESIGN.md).
package transport

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-gatedio"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/artifex-pm/artifexctl/internal/cachepath"
)

// ProgressFunc reports fractional progress in [0, 1]; it may be nil.
type ProgressFunc func(fraction float64)

// Client wraps a retrying HTTP client, grounded on the teacher's
// client.NewClient construction of *retryablehttp.Client.
type Client struct {
	http *retryablehttp.Client
}

// NewClient builds a Client with the teacher's retry/backoff settings.
func NewClient(logger hclog.Logger, timeout time.Duration) *Client {
	return &Client{
		http: &retryablehttp.Client{
			HTTPClient: &http.Client{Timeout: timeout},
			RetryWaitMin: 2 * time.Second,
			RetryWaitMax: 10 * time.Second,
			RetryMax:     2,
			Backoff:      retryablehttp.DefaultBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Logger:       logger,
		},
	}
}

// Download fetches url into dst atomically (write to a same-directory
// temp file, verify, then rename into place — grounded on the hermit
// cache's downloadHTTP pattern), invoking progress with the fraction of
// expectedSize bytes written so far when expectedSize is known. If
// expectedMD5 is non-empty, the downloaded bytes' digest must match or
// the temp file is removed and an error returned. A "file://" URL (used
// by the planner's R2 promotion from a read-only cache) is copied from
// local disk rather than fetched over HTTP.
func (c *Client) Download(ctx context.Context, rawURL string, dst cachepath.AbsolutePath, expectedMD5 string, expectedSize int64, progress ProgressFunc) error {
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Scheme == "file" {
		return c.downloadFile(parsed.Path, dst, expectedMD5, expectedSize, progress)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	if err := dst.EnsureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dst.Dir().ToString(), dst.Base()+".part-*")
	if err != nil {
		return err
	}
	tmpPath := cachepath.New(tmp.Name())
	defer func() { _ = tmpPath.Remove() }()

	hasher := md5.New()
	body := io.TeeReader(resp.Body, hasher)

	// gatedio serializes reads of the body behind a mutex; countingReader
	// derives progress from the same single read pass, so no second
	// goroutine polls bytes read.
	gated := gatedio.NewGatedReader(body)
	if expectedSize > 0 && progress != nil {
		_, err = io.Copy(tmp, &countingReader{r: gated, total: expectedSize, onProgress: progress})
	} else {
		_, err = io.Copy(tmp, gated)
	}
	closeErr := tmp.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	if expectedMD5 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expectedMD5 {
			return fmt.Errorf("integrity mismatch for %s: expected md5 %s, got %s", rawURL, expectedMD5, actual)
		}
	}

	if progress != nil {
		progress(1.0)
	}
	return tmpPath.Rename(dst)
}

// downloadFile copies srcPath into dst using the same atomic
// temp-file-then-rename and MD5-verification conventions as the HTTP
// path. Progress is reported from a single read pass over the source.
func (c *Client) downloadFile(srcPath string, dst cachepath.AbsolutePath, expectedMD5 string, expectedSize int64, progress ProgressFunc) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := dst.EnsureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dst.Dir().ToString(), dst.Base()+".part-*")
	if err != nil {
		return err
	}
	tmpPath := cachepath.New(tmp.Name())
	defer func() { _ = tmpPath.Remove() }()

	hasher := md5.New()
	body := io.TeeReader(src, hasher)

	if expectedSize > 0 && progress != nil {
		_, err = io.Copy(tmp, &countingReader{r: body, total: expectedSize, onProgress: progress})
	} else {
		_, err = io.Copy(tmp, body)
	}
	closeErr := tmp.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	if expectedMD5 != "" {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expectedMD5 {
			return fmt.Errorf("integrity mismatch for %s: expected md5 %s, got %s", srcPath, expectedMD5, actual)
		}
	}

	if progress != nil {
		progress(1.0)
	}
	return tmpPath.Rename(dst)
}

type countingReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.total > 0 {
		c.onProgress(float64(c.read) / float64(c.total))
	}
	return n, err
}
