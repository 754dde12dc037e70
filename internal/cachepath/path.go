// Package cachepath provides a small absolute-path wrapper used throughout
// the cache core so path-joining and existence checks read the same way
// everywhere, instead of scattering filepath.Join/os.Stat calls. Ported
// from the simpler, single-type variant of the teacher's legacy path
// abstraction (as opposed to its newer multi-type anchored/relative zoo),
// which fits a project with no monorepo-relative-path concept.
package cachepath

import (
	"io/fs"
	"os"
	"path/filepath"
)

const dirPermissions = os.ModeDir | 0775

// AbsolutePath is a root-relative-free absolute filesystem path.
type AbsolutePath string

// New wraps an already-absolute string path. Callers are expected to have
// produced it from filepath.Abs or a known-absolute source.
func New(p string) AbsolutePath {
	return AbsolutePath(p)
}

// ToString returns the plain string form of the path.
func (ap AbsolutePath) ToString() string {
	return string(ap)
}

// Join appends path segments and returns the resulting AbsolutePath.
func (ap AbsolutePath) Join(segments ...string) AbsolutePath {
	args := append([]string{string(ap)}, segments...)
	return AbsolutePath(filepath.Join(args...))
}

// Base returns the last path element.
func (ap AbsolutePath) Base() string {
	return filepath.Base(string(ap))
}

// Ext returns the file extension, including the leading dot.
func (ap AbsolutePath) Ext() string {
	return filepath.Ext(string(ap))
}

// Dir returns the parent directory.
func (ap AbsolutePath) Dir() AbsolutePath {
	return AbsolutePath(filepath.Dir(string(ap)))
}

// RelativePathString returns ap expressed relative to base.
func (ap AbsolutePath) RelativePathString(base AbsolutePath) (string, error) {
	return filepath.Rel(string(base), string(ap))
}

// FileExists reports whether a regular file exists at this path.
func (ap AbsolutePath) FileExists() bool {
	info, err := os.Stat(string(ap))
	return err == nil && !info.IsDir()
}

// DirExists reports whether a directory exists at this path.
func (ap AbsolutePath) DirExists() bool {
	info, err := os.Stat(string(ap))
	return err == nil && info.IsDir()
}

// Exists reports whether anything exists at this path.
func (ap AbsolutePath) Exists() bool {
	_, err := os.Lstat(string(ap))
	return err == nil
}

// Lstat is a thin wrapper over os.Lstat.
func (ap AbsolutePath) Lstat() (fs.FileInfo, error) {
	return os.Lstat(string(ap))
}

// IsSymlink reports whether the path is a symlink (without following it).
func (ap AbsolutePath) IsSymlink() bool {
	info, err := os.Lstat(string(ap))
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// MkdirAll creates the directory and any missing parents.
func (ap AbsolutePath) MkdirAll() error {
	return os.MkdirAll(string(ap), dirPermissions)
}

// EnsureDir creates the parent directory of this path.
func (ap AbsolutePath) EnsureDir() error {
	return ap.Dir().MkdirAll()
}

// Open opens the file for reading.
func (ap AbsolutePath) Open() (*os.File, error) {
	return os.Open(string(ap))
}

// OpenFile opens the file with the given flags and permissions.
func (ap AbsolutePath) OpenFile(flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(string(ap), flag, perm)
}

// Create creates (truncating) the file at this path.
func (ap AbsolutePath) Create() (*os.File, error) {
	return os.Create(string(ap))
}

// ReadFile reads the full file contents.
func (ap AbsolutePath) ReadFile() ([]byte, error) {
	return os.ReadFile(string(ap))
}

// WriteFile writes b to this path, creating or truncating as needed.
func (ap AbsolutePath) WriteFile(b []byte, perm os.FileMode) error {
	return os.WriteFile(string(ap), b, perm)
}

// Remove removes the file or empty directory at this path.
func (ap AbsolutePath) Remove() error {
	return os.Remove(string(ap))
}

// RemoveAll removes the path and everything beneath it.
func (ap AbsolutePath) RemoveAll() error {
	return os.RemoveAll(string(ap))
}

// Rename moves this path to dest.
func (ap AbsolutePath) Rename(dest AbsolutePath) error {
	return os.Rename(string(ap), string(dest))
}

// Readlink returns the target of a symlink at this path.
func (ap AbsolutePath) Readlink() (string, error) {
	return os.Readlink(string(ap))
}

// Symlink creates a symlink at ap pointing to target.
func (ap AbsolutePath) Symlink(target string) error {
	return os.Symlink(target, string(ap))
}

// ContainsPath reports whether ap is an ancestor directory of other.
func (ap AbsolutePath) ContainsPath(other AbsolutePath) (bool, error) {
	rel, err := filepath.Rel(string(ap), string(other))
	if err != nil {
		return false, err
	}
	return rel != ".." && !hasDotDotPrefix(rel), nil
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[0] == '.' && rel[1] == '.' && rel[2] == filepath.Separator
}
