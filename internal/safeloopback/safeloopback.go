// Licensed under the MIT License.

// Package safeloopback attaches a disk image file to a loop device and
// guarantees the device is detached again, even on cleanup code paths where
// errors cannot be propagated.
package safeloopback

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
)

// Runner drives the loop device tool. Tests substitute a fake.
type Runner interface {
	Attach(diskFilePath string) (devicePath string, err error)
	Detach(devicePath string) error
}

type losetupRunner struct{}

func (losetupRunner) Attach(diskFilePath string) (string, error) {
	stdout, _, err := shell.NewExecBuilder("losetup", "--show", "-f", diskFilePath).
		LogLevel(logrus.DebugLevel, logrus.WarnLevel).
		ExecuteCaptureOutput()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout), nil
}

func (losetupRunner) Detach(devicePath string) error {
	return shell.NewExecBuilder("losetup", "-d", devicePath).
		LogLevel(logrus.DebugLevel, logrus.WarnLevel).
		Execute()
}

// DefaultRunner returns the losetup-backed runner.
func DefaultRunner() Runner {
	return losetupRunner{}
}

// Loopback represents a single attached loop device.
type Loopback struct {
	devicePath   string
	diskFilePath string
	isAttached   bool
	runner       Runner
}

// NewLoopback attaches the disk file to a free loop device.
func NewLoopback(diskFilePath string) (*Loopback, error) {
	return NewLoopbackWithRunner(DefaultRunner(), diskFilePath)
}

// NewLoopbackWithRunner is NewLoopback with an explicit runner, for tests.
func NewLoopbackWithRunner(runner Runner, diskFilePath string) (*Loopback, error) {
	logger.Log.Debugf("Attaching loop device for (%s)", diskFilePath)

	devicePath, err := runner.Attach(diskFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to attach loop device for (%s):\n%w", diskFilePath, err)
	}

	return &Loopback{
		devicePath:   devicePath,
		diskFilePath: diskFilePath,
		isAttached:   true,
		runner:       runner,
	}, nil
}

// DevicePath returns the path of the attached loop device.
func (l *Loopback) DevicePath() string {
	return l.devicePath
}

// DiskFilePath returns the path of the backing disk image file.
func (l *Loopback) DiskFilePath() string {
	return l.diskFilePath
}

// IsAttached reports whether the device is still attached.
func (l *Loopback) IsAttached() bool {
	return l.isAttached
}

// CleanClose detaches and reports any error. Calling it on an already
// detached device is a no-op.
func (l *Loopback) CleanClose() error {
	return l.close()
}

// Close detaches on a best-effort basis: failures are logged and swallowed.
func (l *Loopback) Close() {
	err := l.close()
	if err != nil {
		logger.Log.Warnf("Failed to detach loop device (%s): %v", l.devicePath, err)
	}
}

func (l *Loopback) close() error {
	if !l.isAttached {
		return nil
	}

	logger.Log.Debugf("Detaching loop device (%s)", l.devicePath)

	err := l.runner.Detach(l.devicePath)
	if err != nil {
		return fmt.Errorf("failed to detach loop device (%s):\n%w", l.devicePath, err)
	}

	l.isAttached = false
	return nil
}
