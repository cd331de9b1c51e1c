// Package fs holds some utilities for manipulating the file system
package fs

import (
	"fmt"
	"os"
	"os/user"
	"path"
)

const defaultDirectoryPermission = 0740

const secureFilePermission = 0600

// HomeFolder returns the home folder of the current user
func HomeFolder() string {
	u, err := user.Current()
	if err != nil {
		return os.TempDir()
	}
	return u.HomeDir
}

// CreateSecureFolder creates folder with 0740 permissions if it is absent.
// An existing folder is returned as is.
func CreateSecureFolder(folder string) (string, error) {
	exists, err := Exists(folder)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.MkdirAll(folder, defaultDirectoryPermission); err != nil {
			return "", fmt.Errorf("creating folder %s: %w", folder, err)
		}
		return folder, nil
	}
	info, err := os.Lstat(folder)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a folder", folder)
	}
	return folder, nil
}

// Exists returns whether the given file or directory exists.
func Exists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}

// CreateSecureFile creates (or truncates) file with read-write permission for
// the user only and returns the file handle.
func CreateSecureFile(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, secureFilePermission)
	if err != nil {
		return nil, err
	}
	// OpenFile keeps the mode of a file that already existed
	if err := fd.Chmod(secureFilePermission); err != nil {
		fd.Close()
		return nil, err
	}
	return fd, nil
}

// DefaultFolder is the folder the client keeps its files in by default.
func DefaultFolder() string {
	return path.Join(HomeFolder(), ".stepout")
}
