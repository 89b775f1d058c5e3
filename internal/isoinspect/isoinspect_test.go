// Licensed under the MIT License.

package isoinspect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kdomanski/iso9660"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

func writeTestIso(t *testing.T, label string, paths []string) string {
	t.Helper()

	writer, err := iso9660.NewWriter()
	require.NoError(t, err)
	defer writer.Cleanup()

	for _, path := range paths {
		err = writer.AddFile(strings.NewReader("content of "+path), path)
		require.NoError(t, err)
	}

	isoPath := filepath.Join(t.TempDir(), "test.iso")
	isoFile, err := os.Create(isoPath)
	require.NoError(t, err)
	defer isoFile.Close()

	require.NoError(t, writer.WriteTo(isoFile, label))
	return isoPath
}

func TestVerifyImage(t *testing.T) {
	isoPath := writeTestIso(t, "UBUNTU-LIVE", []string{
		"casper/filesystem.squashfs",
		"casper/vmlinuz",
		"boot/grub/grub.cfg",
		".disk/info",
	})

	err := VerifyImage(isoPath, "UBUNTU-LIVE", []string{
		"casper/filesystem.squashfs",
		"boot/grub/grub.cfg",
		".disk/info",
	})
	assert.NoError(t, err)
}

func TestVerifyImageWrongLabel(t *testing.T) {
	isoPath := writeTestIso(t, "SOMETHING-ELSE", []string{"casper/vmlinuz"})

	err := VerifyImage(isoPath, "UBUNTU-LIVE", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "volume label")
}

func TestVerifyImageMissingPath(t *testing.T) {
	isoPath := writeTestIso(t, "UBUNTU-LIVE", []string{"casper/vmlinuz"})

	err := VerifyImage(isoPath, "UBUNTU-LIVE", []string{"casper/filesystem.squashfs"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing required path")
}

func TestVerifyImageNotAnIso(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.iso")
	require.NoError(t, os.WriteFile(path, []byte("not an iso"), 0o644))

	err := VerifyImage(path, "UBUNTU-LIVE", nil)
	assert.Error(t, err)
}
