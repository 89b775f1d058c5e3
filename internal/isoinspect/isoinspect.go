// Licensed under the MIT License.

// Package isoinspect verifies produced ISO-9660 images by reading them back.
package isoinspect

import (
	"fmt"
	"os"
	"strings"

	"github.com/kdomanski/iso9660"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

// Primary volume descriptor location, per ECMA-119: sector 16, with the
// 32-byte volume identifier at offset 40.
const (
	sectorSize        = 2048
	pvdSector         = 16
	volumeIdOffset    = 40
	volumeIdFieldSize = 32
)

// VerifyImage checks that the ISO has the expected volume label and that
// every required path is present.
func VerifyImage(isoPath string, expectedLabel string, requiredPaths []string) error {
	isoFile, err := os.Open(isoPath)
	if err != nil {
		return fmt.Errorf("failed to open ISO (%s):\n%w", isoPath, err)
	}
	defer isoFile.Close()

	label, err := readVolumeLabel(isoFile)
	if err != nil {
		return err
	}
	if label != expectedLabel {
		return fmt.Errorf("ISO (%s) has volume label (%s), expected (%s)", isoPath, label, expectedLabel)
	}

	image, err := iso9660.OpenImage(isoFile)
	if err != nil {
		return fmt.Errorf("failed to parse ISO (%s):\n%w", isoPath, err)
	}

	for _, requiredPath := range requiredPaths {
		found, err := pathExists(image, requiredPath)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("ISO (%s) is missing required path (%s)", isoPath, requiredPath)
		}
	}

	logger.Log.Debugf("ISO (%s) verified: label (%s), %d required paths present", isoPath, label,
		len(requiredPaths))
	return nil
}

func readVolumeLabel(isoFile *os.File) (string, error) {
	buffer := make([]byte, volumeIdFieldSize)
	_, err := isoFile.ReadAt(buffer, pvdSector*sectorSize+volumeIdOffset)
	if err != nil {
		return "", fmt.Errorf("failed to read primary volume descriptor:\n%w", err)
	}

	return strings.TrimRight(string(buffer), " \x00"), nil
}

func pathExists(image *iso9660.Image, path string) (bool, error) {
	current, err := image.RootDir()
	if err != nil {
		return false, fmt.Errorf("failed to read ISO root directory:\n%w", err)
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, segment := range segments {
		if !current.IsDir() {
			return false, nil
		}

		children, err := current.GetChildren()
		if err != nil {
			return false, fmt.Errorf("failed to list ISO directory:\n%w", err)
		}

		var next *iso9660.File
		for _, child := range children {
			if strings.EqualFold(child.Name(), segment) {
				next = child
				break
			}
		}
		if next == nil {
			return false, nil
		}
		current = next
	}

	return true, nil
}
