// Package archive implements the tar.bz2 extraction and metadata-file
// collaborators named in spec §6 (extract_tarball, compute_md5,
// read_index_json / read_index_json_from_tarball). Safety checks are
// grounded on the teacher's cacheitem.go named-error set, adapted from
// its zstd+tar restore path to the bz2+tar format this domain uses.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/sys/sequential"

	"github.com/artifex-pm/artifexctl/internal/cachepath"
)

var (
	// ErrTraversal indicates a tar entry attempts to write outside dstDir.
	ErrTraversal = errors.New("tar entry attempts to write outside of destination directory")
	// ErrCycleDetected indicates a symlink cycle within the archive.
	ErrCycleDetected = errors.New("archive contains a symlink cycle")
	// ErrNameMalformed indicates an entry name could not be interpreted safely.
	ErrNameMalformed = errors.New("archive entry name is malformed")
	// ErrUnsupportedFileType indicates an entry type this extractor cannot restore.
	ErrUnsupportedFileType = errors.New("archive entry is an unsupported file type")
)

// PackageRecord is the subset of index.json / repodata_record.json fields
// the cache core reads and writes (spec §6).
type PackageRecord struct {
	Channel     string   `json:"channel,omitempty"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber int      `json:"build_number"`
	Depends     []string `json:"depends,omitempty"`
	MD5         string   `json:"md5,omitempty"`
	URL         string   `json:"url,omitempty"`
	Size        int64    `json:"size,omitempty"`
	Subdir      string   `json:"subdir,omitempty"`
	Fn          string   `json:"fn,omitempty"`
}

// ComputeMD5 hashes the file at path and returns its hex digest.
func ComputeMD5(path cachepath.AbsolutePath) (string, error) {
	f, err := sequential.Open(path.ToString())
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadIndexJSON reads <extractedDir>/info/index.json.
func ReadIndexJSON(extractedDir cachepath.AbsolutePath) (PackageRecord, error) {
	b, err := extractedDir.Join("info", "index.json").ReadFile()
	if err != nil {
		return PackageRecord{}, err
	}
	var rec PackageRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return PackageRecord{}, fmt.Errorf("parse index.json: %w", err)
	}
	return rec, nil
}

// ReadRepodataRecord reads <extractedDir>/info/repodata_record.json.
func ReadRepodataRecord(extractedDir cachepath.AbsolutePath) (PackageRecord, error) {
	b, err := extractedDir.Join("info", "repodata_record.json").ReadFile()
	if err != nil {
		return PackageRecord{}, err
	}
	var rec PackageRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return PackageRecord{}, fmt.Errorf("parse repodata_record.json: %w", err)
	}
	return rec, nil
}

// WriteRepodataRecord writes rec to <extractedDir>/info/repodata_record.json,
// creating the info/ directory if needed. Used to short-circuit future
// scans once a root is known writable (spec §4.C step 2, §4.D insert).
func WriteRepodataRecord(extractedDir cachepath.AbsolutePath, rec PackageRecord) error {
	infoDir := extractedDir.Join("info")
	if err := infoDir.MkdirAll(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return infoDir.Join("repodata_record.json").WriteFile(b, 0644)
}

// ReadIndexJSONFromTarball reads info/index.json directly from the
// tarball stream without extracting, for the read-only-root path of
// spec §4.C step 4.
func ReadIndexJSONFromTarball(tarballPath cachepath.AbsolutePath) (PackageRecord, error) {
	f, err := sequential.Open(tarballPath.ToString())
	if err != nil {
		return PackageRecord{}, err
	}
	defer f.Close()

	tr := tar.NewReader(bzip2.NewReader(f))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return PackageRecord{}, fmt.Errorf("%w: info/index.json not found", ErrNameMalformed)
		}
		if err != nil {
			return PackageRecord{}, err
		}
		if cleanName(hdr.Name) == "info/index.json" {
			var rec PackageRecord
			if err := json.NewDecoder(tr).Decode(&rec); err != nil {
				return PackageRecord{}, fmt.Errorf("parse index.json: %w", err)
			}
			return rec, nil
		}
	}
}

// ExtractTarball extracts tarballPath's contents into dstDir, performing
// the tar-traversal and symlink-cycle safety checks grounded on the
// teacher's cacheitem.go.
func ExtractTarball(tarballPath cachepath.AbsolutePath, dstDir cachepath.AbsolutePath) error {
	f, err := sequential.Open(tarballPath.ToString())
	if err != nil {
		return err
	}
	defer f.Close()

	if err := dstDir.MkdirAll(); err != nil {
		return err
	}

	tr := tar.NewReader(bzip2.NewReader(f))
	seenLinks := map[string]int{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := cleanName(hdr.Name)
		if name == "" || strings.HasPrefix(name, "../") {
			return fmt.Errorf("%w: %s", ErrNameMalformed, hdr.Name)
		}
		target := dstDir.Join(filepath.FromSlash(name))
		if ok, err := dstDir.ContainsPath(target); err != nil || !ok {
			return fmt.Errorf("%w: %s", ErrTraversal, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := target.MkdirAll(); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := target.EnsureDir(); err != nil {
				return err
			}
			if err := writeRegularFile(target, tr, os.FileMode(hdr.Mode&0777)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if seenLinks[name] > 2 {
				return fmt.Errorf("%w: %s", ErrCycleDetected, hdr.Name)
			}
			seenLinks[name]++
			if err := target.EnsureDir(); err != nil {
				return err
			}
			_ = target.Remove()
			if err := target.Symlink(hdr.Linkname); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s (type %d)", ErrUnsupportedFileType, hdr.Name, hdr.Typeflag)
		}
	}
}

func writeRegularFile(target cachepath.AbsolutePath, r io.Reader, mode os.FileMode) error {
	out, err := target.OpenFile(os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}

func cleanName(name string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+name)), "/")
}
