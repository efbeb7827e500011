// Package flagfile manages the marker files used to steer running processes.
// A stop marker "X.txt" is disarmed by renaming it to "XNO.txt" and armed by
// renaming it back.
package flagfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Exists reports whether the marker is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Create touches the marker.
func Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create marker %s: %w", path, err)
	}
	return f.Close()
}

// Remove deletes the marker; a missing marker is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker %s: %w", path, err)
	}
	return nil
}

// Disarmed is the renamed form of path: "Trade_Exit.txt" becomes "Trade_ExitNO.txt".
func Disarmed(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "NO" + ext
}

// Disarm renames an armed marker to its disarmed name. It reports whether a
// rename happened.
func Disarm(path string) (bool, error) {
	if !Exists(path) {
		return false, nil
	}
	if err := os.Rename(path, Disarmed(path)); err != nil {
		return false, fmt.Errorf("disarm %s: %w", path, err)
	}
	return true, nil
}

// Arm renames the disarmed marker back, creating the marker if neither exists.
func Arm(path string) error {
	if Exists(path) {
		return nil
	}
	if Exists(Disarmed(path)) {
		if err := os.Rename(Disarmed(path), path); err != nil {
			return fmt.Errorf("arm %s: %w", path, err)
		}
		return nil
	}
	return Create(path)
}
