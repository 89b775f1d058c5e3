// Licensed under the MIT License.

// Package initrdutils inspects initial RAM disk images. An initrd is a gzip
// of a cpio archive (possibly preceded by uncompressed microcode segments,
// which this package does not need to handle for chroot-built initrds).
package initrdutils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/pgzip"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

// ContainsMember reports whether the initrd contains a member whose name
// starts with the given prefix.
func ContainsMember(initrdPath string, namePrefix string) (bool, error) {
	found := false
	err := walkMembers(initrdPath, func(name string) bool {
		if strings.HasPrefix(name, namePrefix) {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// VerifyLiveBootHook checks that the initrd was built with the live-boot
// (casper) hooks; without them the compressed root image will never be
// mounted at boot.
func VerifyLiveBootHook(initrdPath string) error {
	logger.Log.Debugf("Checking for live-boot hooks in initrd (%s)", initrdPath)

	for _, prefix := range []string{"scripts/casper", "usr/share/initramfs-tools/scripts/casper"} {
		found, err := ContainsMember(initrdPath, prefix)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}

	return fmt.Errorf("initrd (%s) does not contain the casper live-boot hooks", initrdPath)
}

func walkMembers(initrdPath string, visit func(name string) bool) error {
	// Set up a series of io readers: initrd file -> parallelized gzip -> cpio.
	initrdFile, err := os.Open(initrdPath)
	if err != nil {
		return fmt.Errorf("failed to open initrd (%s):\n%w", initrdPath, err)
	}
	defer initrdFile.Close()

	gzipReader, err := pgzip.NewReader(initrdFile)
	if err != nil {
		return fmt.Errorf("failed to read initrd (%s) as gzip:\n%w", initrdPath, err)
	}
	defer gzipReader.Close()

	cpioReader := cpio.NewReader(gzipReader)
	for {
		hdr, err := cpioReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read initrd (%s) cpio archive:\n%w", initrdPath, err)
		}

		if !visit(hdr.Name) {
			return nil
		}
	}
}
