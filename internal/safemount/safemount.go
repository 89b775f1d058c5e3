// Licensed under the MIT License.

// Package safemount provides a Mount that is guaranteed to be released, even
// on cleanup code paths where errors cannot be propagated.
package safemount

import (
	"fmt"
	"os"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"golang.org/x/sys/unix"
)

// Backend performs the actual mount table manipulation. Production code uses
// the kernel syscalls; tests substitute a fake so they never touch the real
// mount table.
type Backend interface {
	Mount(source string, target string, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
}

type unixBackend struct{}

func (unixBackend) Mount(source string, target string, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (unixBackend) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

// DefaultBackend returns the kernel syscall backend.
func DefaultBackend() Backend {
	return unixBackend{}
}

// Mount represents a single active mount point.
type Mount struct {
	target     string
	isMounted  bool
	createdDir bool
	backend    Backend
}

// NewMount creates the target directory if requested and mounts it. On
// failure, nothing is left mounted.
func NewMount(source string, target string, fstype string, flags uintptr, data string, makeAndDeleteDir bool,
) (*Mount, error) {
	return NewMountWithBackend(DefaultBackend(), source, target, fstype, flags, data, makeAndDeleteDir)
}

// NewMountWithBackend is NewMount with an explicit backend, for tests.
func NewMountWithBackend(backend Backend, source string, target string, fstype string, flags uintptr, data string,
	makeAndDeleteDir bool,
) (*Mount, error) {
	m := &Mount{
		target:  target,
		backend: backend,
	}

	if makeAndDeleteDir {
		err := os.MkdirAll(target, os.ModePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to create mount directory (%s):\n%w", target, err)
		}
		m.createdDir = true
	}

	logger.Log.Debugf("Mounting (%s) at (%s) type (%s)", source, target, fstype)

	err := backend.Mount(source, target, fstype, flags, data)
	if err != nil {
		if m.createdDir {
			cleanupErr := os.Remove(target)
			if cleanupErr != nil {
				logger.Log.Warnf("Failed to remove mount directory (%s): %v", target, cleanupErr)
			}
		}
		return nil, fmt.Errorf("failed to mount (%s) at (%s):\n%w", source, target, err)
	}

	m.isMounted = true
	return m, nil
}

// Target returns the mount point path.
func (m *Mount) Target() string {
	return m.target
}

// IsMounted reports whether the mount is still active.
func (m *Mount) IsMounted() bool {
	return m.isMounted
}

// CleanClose unmounts and reports any error. Calling it on an already
// released mount is a no-op.
func (m *Mount) CleanClose() error {
	return m.close(false)
}

// Close unmounts on a best-effort basis: failures are logged and swallowed,
// since Close typically runs in a defer where the mount directory may
// already be gone.
func (m *Mount) Close() {
	err := m.close(true)
	if err != nil {
		logger.Log.Warnf("Failed to unmount (%s): %v", m.target, err)
	}
}

func (m *Mount) close(lazyFallback bool) error {
	if !m.isMounted {
		return nil
	}

	logger.Log.Debugf("Unmounting (%s)", m.target)

	err := m.backend.Unmount(m.target, 0)
	if err != nil {
		// EINVAL means the target is not a mount point: someone else already
		// unmounted it, which counts as released.
		if err == unix.EINVAL {
			err = nil
		} else if lazyFallback {
			logger.Log.Warnf("Failed to unmount (%s), retrying with lazy detach: %v", m.target, err)
			err = m.backend.Unmount(m.target, unix.MNT_DETACH)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to unmount (%s):\n%w", m.target, err)
	}

	m.isMounted = false

	if m.createdDir {
		removeErr := os.Remove(m.target)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Log.Debugf("Leaving mount directory (%s) in place: %v", m.target, removeErr)
		}
		m.createdDir = false
	}

	return nil
}
