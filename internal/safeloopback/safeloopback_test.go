// Licensed under the MIT License.

package safeloopback

import (
	"errors"
	"os"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

type fakeRunner struct {
	attachErr   error
	detachErr   error
	detachCalls int
}

func (f *fakeRunner) Attach(diskFilePath string) (string, error) {
	if f.attachErr != nil {
		return "", f.attachErr
	}
	return "/dev/loop7", nil
}

func (f *fakeRunner) Detach(devicePath string) error {
	f.detachCalls++
	return f.detachErr
}

func TestLoopbackAttachAndCleanClose(t *testing.T) {
	runner := &fakeRunner{}

	loopback, err := NewLoopbackWithRunner(runner, "/work/efiboot.img")
	require.NoError(t, err)
	assert.True(t, loopback.IsAttached())
	assert.Equal(t, "/dev/loop7", loopback.DevicePath())
	assert.Equal(t, "/work/efiboot.img", loopback.DiskFilePath())

	require.NoError(t, loopback.CleanClose())
	assert.False(t, loopback.IsAttached())
	assert.Equal(t, 1, runner.detachCalls)
}

func TestLoopbackAttachFailure(t *testing.T) {
	runner := &fakeRunner{attachErr: errors.New("no free loop device")}

	_, err := NewLoopbackWithRunner(runner, "/work/efiboot.img")
	assert.Error(t, err)
}

func TestLoopbackCloseIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}

	loopback, err := NewLoopbackWithRunner(runner, "/work/efiboot.img")
	require.NoError(t, err)

	require.NoError(t, loopback.CleanClose())
	loopback.Close()
	assert.Equal(t, 1, runner.detachCalls)
}

func TestLoopbackCleanCloseReportsDetachFailure(t *testing.T) {
	runner := &fakeRunner{detachErr: errors.New("device busy")}

	loopback, err := NewLoopbackWithRunner(runner, "/work/efiboot.img")
	require.NoError(t, err)

	err = loopback.CleanClose()
	assert.Error(t, err)
	assert.True(t, loopback.IsAttached())
}
