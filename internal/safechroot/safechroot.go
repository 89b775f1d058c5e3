// Licensed under the MIT License.

// Package safechroot runs commands inside an isolated root filesystem tree,
// managing the virtual filesystem mounts the jail needs and guaranteeing
// they are unmounted in reverse order.
package safechroot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/safemount"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
	"golang.org/x/sys/unix"
)

// MountPoint describes a virtual filesystem attachment inside the jail.
type MountPoint struct {
	Source         string
	Target         string
	FileSystemType string
	Flags          uintptr
	Data           string
}

func NewMountPoint(source, target, fstype string, flags uintptr, data string) *MountPoint {
	return &MountPoint{
		Source:         source,
		Target:         target,
		FileSystemType: fstype,
		Flags:          flags,
		Data:           data,
	}
}

// DefaultMountPoints returns the virtual filesystem mounts every jail needs,
// in mount order: process info, kernel info, device nodes, pseudo-terminals.
// Unmount order is strictly the reverse.
func DefaultMountPoints() []*MountPoint {
	return []*MountPoint{
		NewMountPoint("proc", "/proc", "proc", 0, ""),
		NewMountPoint("sysfs", "/sys", "sysfs", 0, ""),
		NewMountPoint("/dev", "/dev", "", unix.MS_BIND, ""),
		NewMountPoint("devpts", "/dev/pts", "devpts", 0, ""),
	}
}

// defaultEnv is the fixed non-interactive baseline environment forwarded to
// every command in the jail, so no command can block on a prompt.
var defaultEnv = []string{
	"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
	"HOME=/root",
	"TERM=dumb",
	"DEBIAN_FRONTEND=noninteractive",
	"DEBIAN_PRIORITY=critical",
	"DEBCONF_NONINTERACTIVE_SEEN=true",
	"LC_ALL=C",
	"LANGUAGE=C",
	"LANG=C",
}

// ChrootInterface is the subset of Chroot that command stages depend on.
type ChrootInterface interface {
	RootDir() string
	Run(env []string, program string, args ...string) error
	RunCaptureOutput(env []string, program string, args ...string) (stdout string, stderr string, err error)
}

// Chroot is an isolated root filesystem tree with its virtual filesystem
// mounts.
type Chroot struct {
	rootDir string
	mounts  []*safemount.Mount
	backend safemount.Backend
}

// NewChroot creates a chroot around an existing root directory. Nothing is
// mounted until Initialize is called.
func NewChroot(rootDir string) *Chroot {
	return NewChrootWithBackend(rootDir, safemount.DefaultBackend())
}

// NewChrootWithBackend is NewChroot with an explicit mount backend, for tests.
func NewChrootWithBackend(rootDir string, backend safemount.Backend) *Chroot {
	return &Chroot{
		rootDir: rootDir,
		backend: backend,
	}
}

// Initialize mounts the default virtual filesystems plus any extra mount
// points, in order. On failure, everything mounted so far is released.
func (c *Chroot) Initialize(extraMountPoints []*MountPoint) (err error) {
	if len(c.mounts) > 0 {
		return fmt.Errorf("chroot (%s) is already initialized", c.rootDir)
	}

	mountPoints := append(DefaultMountPoints(), extraMountPoints...)

	defer func() {
		if err != nil {
			c.unmountAll(true)
		}
	}()

	for _, mountPoint := range mountPoints {
		target := filepath.Join(c.rootDir, mountPoint.Target)

		mount, mountErr := safemount.NewMountWithBackend(c.backend, mountPoint.Source, target,
			mountPoint.FileSystemType, mountPoint.Flags, mountPoint.Data, true /*makeAndDeleteDir*/)
		if mountErr != nil {
			return fmt.Errorf("failed to initialize chroot (%s):\n%w", c.rootDir, mountErr)
		}

		c.mounts = append(c.mounts, mount)
	}

	return nil
}

// RootDir returns the path of the jail's root directory.
func (c *Chroot) RootDir() string {
	return c.rootDir
}

// Run executes a command inside the jail with the fixed non-interactive
// baseline environment merged with the caller's overrides. A non-zero exit
// is returned as a *shell.ExecError.
func (c *Chroot) Run(env []string, program string, args ...string) error {
	chrootArgs := append([]string{c.rootDir, program}, args...)
	return shell.NewExecBuilder("chroot", chrootArgs...).
		Env(BuildEnv(env)).
		LogLevel(logrus.DebugLevel, logrus.DebugLevel).
		ErrorStderrLines(5).
		Execute()
}

// RunCaptureOutput is Run with stdout and stderr captured.
func (c *Chroot) RunCaptureOutput(env []string, program string, args ...string) (string, string, error) {
	chrootArgs := append([]string{c.rootDir, program}, args...)
	return shell.NewExecBuilder("chroot", chrootArgs...).
		Env(BuildEnv(env)).
		LogLevel(shell.LogDisabledLevel, logrus.DebugLevel).
		ExecuteCaptureOutput()
}

// BuildEnv merges the fixed baseline environment with overrides. An override
// with the same variable name replaces the baseline entry.
func BuildEnv(overrides []string) []string {
	merged := map[string]string{}
	order := []string{}

	add := func(entry string) {
		name, _, found := strings.Cut(entry, "=")
		if !found {
			return
		}
		if _, known := merged[name]; !known {
			order = append(order, name)
		}
		merged[name] = entry
	}

	for _, entry := range defaultEnv {
		add(entry)
	}
	for _, entry := range overrides {
		add(entry)
	}

	env := make([]string, 0, len(order))
	for _, name := range order {
		env = append(env, merged[name])
	}
	// Overrides of baseline entries keep baseline order; keep the appended
	// tail deterministic too.
	sort.SliceStable(env[len(defaultEnv):], func(i, j int) bool {
		return env[len(defaultEnv)+i] < env[len(defaultEnv)+j]
	})
	return env
}

// UnmountAll releases the jail's mounts in reverse mount order. Reports the
// first error; already-unmounted entries are not an error.
func (c *Chroot) UnmountAll() error {
	return c.unmountAll(false)
}

// Close unmounts everything on a best-effort basis and, when leaveOnDisk is
// false, deletes the root directory tree.
func (c *Chroot) Close(leaveOnDisk bool) error {
	c.unmountAll(true)

	if !leaveOnDisk {
		logger.Log.Debugf("Removing chroot directory (%s)", c.rootDir)
		err := os.RemoveAll(c.rootDir)
		if err != nil {
			return fmt.Errorf("failed to remove chroot directory (%s):\n%w", c.rootDir, err)
		}
	}

	return nil
}

func (c *Chroot) unmountAll(bestEffort bool) error {
	var firstErr error

	for i := len(c.mounts) - 1; i >= 0; i-- {
		mount := c.mounts[i]
		if bestEffort {
			mount.Close()
			continue
		}

		err := mount.CleanClose()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		c.mounts = nil
	}
	return firstErr
}
