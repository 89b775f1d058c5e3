// Licensed under the MIT License.

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "file.txt")

	require.NoError(t, Write("content", path))

	content, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "content", content)
}

func TestCopyPreservesMode(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.sh")
	dst := filepath.Join(t.TempDir(), "sub", "dst.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755))

	require.NoError(t, Copy(src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	content, err := Read(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", content)
}

func TestCopyMissingSource(t *testing.T) {
	err := Copy(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "dst"))
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")

	exists, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, Write("", path))

	exists, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetAbsPathWithBase(t *testing.T) {
	assert.Equal(t, "/base/rel", GetAbsPathWithBase("/base", "rel"))
	assert.Equal(t, "/abs/path", GetAbsPathWithBase("/base", "/abs/path"))
}
