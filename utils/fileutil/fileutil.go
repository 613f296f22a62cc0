// Package fileutil provides helpers for inspecting partially downloaded
// payloads on local disk.
package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// PartSuffix marks in-flight downloads. A payload containing a part file is
// never considered complete.
const PartSuffix = ".part"

// ErrEmptyName is returned when a cloud-supplied name reduces to nothing
// usable as a local path component.
var ErrEmptyName = errors.New("name reduces to empty base name")

// SanitizeName reduces a cloud-supplied name to a safe base path component.
// Cloud names are untrusted input and must never escape the download root.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == "" {
		return "", ErrEmptyName
	}
	return base, nil
}

// DirSize returns the total bytes of all regular files under dir, part files
// included. Returns 0 if dir does not exist.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ContainsPartFiles returns true if any file under dir carries PartSuffix.
func ContainsPartFiles(dir string) (bool, error) {
	return containsMatch(dir, func(name string) bool {
		return strings.HasSuffix(name, PartSuffix)
	})
}

// ContainsFinalFiles returns true if any file under dir does not carry
// PartSuffix.
func ContainsFinalFiles(dir string) (bool, error) {
	return containsMatch(dir, func(name string) bool {
		return !strings.HasSuffix(name, PartSuffix)
	})
}

func containsMatch(dir string, match func(name string) bool) (bool, error) {
	found := false
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && match(info.Name()) {
			found = true
			return filepath.SkipDir
		}
		return nil
	})
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil && err != filepath.SkipDir {
		return false, err
	}
	return found, nil
}
