// Licensed under the MIT License.

package safemount

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

type fakeBackend struct {
	mountErr     error
	unmountErrs  []error
	mountCalls   int
	unmountCalls []int
}

func (f *fakeBackend) Mount(source string, target string, fstype string, flags uintptr, data string) error {
	f.mountCalls++
	return f.mountErr
}

func (f *fakeBackend) Unmount(target string, flags int) error {
	f.unmountCalls = append(f.unmountCalls, flags)
	if len(f.unmountErrs) == 0 {
		return nil
	}
	err := f.unmountErrs[0]
	f.unmountErrs = f.unmountErrs[1:]
	return err
}

func TestMountAndCleanClose(t *testing.T) {
	backend := &fakeBackend{}
	target := filepath.Join(t.TempDir(), "mnt")

	mount, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.NoError(t, err)
	assert.True(t, mount.IsMounted())
	assert.Equal(t, target, mount.Target())
	assert.DirExists(t, target)

	err = mount.CleanClose()
	require.NoError(t, err)
	assert.False(t, mount.IsMounted())
	assert.Equal(t, []int{0}, backend.unmountCalls)

	// The created directory is removed with the mount.
	assert.NoDirExists(t, target)
}

func TestMountFailureLeavesNothingBehind(t *testing.T) {
	backend := &fakeBackend{mountErr: errors.New("no such device")}
	target := filepath.Join(t.TempDir(), "mnt")

	_, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.Error(t, err)
	assert.NoDirExists(t, target)
}

func TestCleanCloseIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	target := filepath.Join(t.TempDir(), "mnt")

	mount, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.NoError(t, err)

	require.NoError(t, mount.CleanClose())
	require.NoError(t, mount.CleanClose())
	assert.Len(t, backend.unmountCalls, 1)
}

func TestCleanCloseReportsUnmountFailure(t *testing.T) {
	backend := &fakeBackend{unmountErrs: []error{errors.New("target is busy")}}
	target := filepath.Join(t.TempDir(), "mnt")

	mount, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.NoError(t, err)

	err = mount.CleanClose()
	assert.Error(t, err)
	assert.True(t, mount.IsMounted())
}

func TestCleanCloseTreatsAlreadyUnmountedAsReleased(t *testing.T) {
	backend := &fakeBackend{unmountErrs: []error{unix.EINVAL}}
	target := filepath.Join(t.TempDir(), "mnt")

	mount, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.NoError(t, err)

	err = mount.CleanClose()
	assert.NoError(t, err)
	assert.False(t, mount.IsMounted())
}

func TestCloseRetriesWithLazyDetach(t *testing.T) {
	backend := &fakeBackend{unmountErrs: []error{errors.New("target is busy")}}
	target := filepath.Join(t.TempDir(), "mnt")

	mount, err := NewMountWithBackend(backend, "/dev/loop0", target, "vfat", 0, "", true)
	require.NoError(t, err)

	mount.Close()
	assert.False(t, mount.IsMounted())
	assert.Equal(t, []int{0, unix.MNT_DETACH}, backend.unmountCalls)
}
