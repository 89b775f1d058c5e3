// Licensed under the MIT License.

package initrdutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliercoder/go-cpio"
	"github.com/klauspost/pgzip"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

// writeTestInitrd assembles a gzip-compressed cpio archive with the given
// member names, the same layout a real initrd has.
func writeTestInitrd(t *testing.T, memberNames []string) string {
	t.Helper()

	initrdPath := filepath.Join(t.TempDir(), "initrd")
	initrdFile, err := os.Create(initrdPath)
	require.NoError(t, err)
	defer initrdFile.Close()

	gzipWriter := pgzip.NewWriter(initrdFile)
	cpioWriter := cpio.NewWriter(gzipWriter)

	for _, name := range memberNames {
		content := []byte("#!/bin/sh\n")
		err = cpioWriter.WriteHeader(&cpio.Header{
			Name: name,
			Mode: 0o755,
			Size: int64(len(content)),
		})
		require.NoError(t, err)
		_, err = cpioWriter.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, cpioWriter.Close())
	require.NoError(t, gzipWriter.Close())

	return initrdPath
}

func TestContainsMember(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{
		"init",
		"scripts/local",
		"scripts/casper",
		"scripts/casper-bottom/01integrity_check",
	})

	found, err := ContainsMember(initrdPath, "scripts/casper")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = ContainsMember(initrdPath, "scripts/nfs")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVerifyLiveBootHook(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{"init", "scripts/casper"})
	assert.NoError(t, VerifyLiveBootHook(initrdPath))
}

func TestVerifyLiveBootHookUsrMergedLayout(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{
		"init",
		"usr/share/initramfs-tools/scripts/casper-bottom/01integrity_check",
	})
	assert.NoError(t, VerifyLiveBootHook(initrdPath))
}

func TestVerifyLiveBootHookMissing(t *testing.T) {
	initrdPath := writeTestInitrd(t, []string{"init", "scripts/local"})

	err := VerifyLiveBootHook(initrdPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "casper")
}

func TestContainsMemberRejectsNonInitrd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-initrd")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ContainsMember(path, "scripts/casper")
	assert.Error(t, err)
}
