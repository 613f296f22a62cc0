package adapter

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/lumenarr/seedr/utils/fileutil"
)

// Disk is the local filesystem capability the reconciler's completion
// predicates and cleanup paths consume. Only metadata reads and payload
// removal go through here; payload writes belong to the cloud client.
type Disk interface {
	Exists(path string) bool
	FolderBytes(path string) (int64, error)
	HasPartFiles(path string) (bool, error)
	HasFinalFiles(path string) (bool, error)
	FileSize(path string) (int64, error)
	Remove(path string) error
	Writable(dir string) error
}

// OSDisk is the operating-system backed Disk.
type OSDisk struct{}

// Exists implements Disk.
func (OSDisk) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FolderBytes implements Disk.
func (OSDisk) FolderBytes(path string) (int64, error) {
	return fileutil.DirSize(path)
}

// HasPartFiles implements Disk.
func (OSDisk) HasPartFiles(path string) (bool, error) {
	return fileutil.ContainsPartFiles(path)
}

// HasFinalFiles implements Disk.
func (OSDisk) HasFinalFiles(path string) (bool, error) {
	return fileutil.ContainsFinalFiles(path)
}

// FileSize implements Disk.
func (OSDisk) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// Remove implements Disk.
func (OSDisk) Remove(path string) error {
	return os.RemoveAll(path)
}

// Writable implements Disk.
func (OSDisk) Writable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat: %s", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	probe, err := ioutil.TempFile(dir, ".seedr-probe-")
	if err != nil {
		return fmt.Errorf("not writable: %s", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}
