// Licensed under the MIT License.

// Package ubuildlib drives the live image build pipeline: bootstrap a root
// filesystem, customize it inside a chroot jail, compress it, and master a
// hybrid UEFI-bootable ISO.
package ubuildlib

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/sys/mountinfo"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/safechroot"
	"github.com/snnbyyds/ubuntu-build/internal/safeguard"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
	"golang.org/x/sys/unix"
)

// ToolVersion is reported by the CLI.
const ToolVersion = "0.3.0"

// Builder owns a single build: the work directory lifecycle, the resource
// guard, and the final artifact path. Exactly one build may be in flight per
// work directory.
type Builder struct {
	config            *ubuildapi.Config
	baseConfigDirPath string
	buildDirPath      string
	outputIsoPath     string

	chroot *safechroot.Chroot
	guard  *safeguard.Guard
	runner *StageRunner
	state  PipelineState

	// extraDebNames is the ordered list of locally supplied packages that
	// were installed, kept for the build summary.
	extraDebNames []string
}

// phase groups the stages that run while the pipeline is in one state.
type phase struct {
	state  PipelineState
	stages []Stage
}

// BuildImageWithConfigFile loads and validates the yaml config, then runs
// the full pipeline.
func BuildImageWithConfigFile(configFilePath string, buildDirPath string, outputIsoPath string) error {
	config := &ubuildapi.Config{}
	err := ubuildapi.UnmarshalAndValidateYamlFile(configFilePath, config)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrConfigValidation, err)
	}

	return BuildImage(config, filepath.Dir(configFilePath), buildDirPath, outputIsoPath)
}

// BuildImage runs the full pipeline for a validated config. The config is
// validated again so programmatic callers get the same guarantee: no side
// effect before validation.
func BuildImage(config *ubuildapi.Config, baseConfigDirPath string, buildDirPath string, outputIsoPath string,
) error {
	err := config.IsValid()
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrConfigValidation, err)
	}

	err = checkHostTools(requiredHostTools)
	if err != nil {
		return err
	}

	b := newBuilder(config, baseConfigDirPath, buildDirPath, outputIsoPath)

	stop := b.guard.NotifyOnSignals()
	defer stop()

	return b.run(b.phases())
}

func newBuilder(config *ubuildapi.Config, baseConfigDirPath string, buildDirPath string, outputIsoPath string,
) *Builder {
	if len(config.Packages.Sets) == 0 {
		config.Packages = defaultPackageSelection(config.Architecture)
	}
	config.Compression = config.Compression.WithDefaults()

	b := &Builder{
		config:            config,
		baseConfigDirPath: baseConfigDirPath,
		buildDirPath:      buildDirPath,
		outputIsoPath:     outputIsoPath,
		guard:             safeguard.New(),
		runner:            &StageRunner{},
		state:             StateIdle,
	}
	b.chroot = safechroot.NewChroot(b.chrootDirPath())
	return b
}

// requiredHostTools are the external programs the pipeline shells out to.
var requiredHostTools = []string{
	"debootstrap", "chroot", "mksquashfs", "xorriso", "dd", "mkfs.vfat", "losetup", "openssl",
}

// checkHostTools verifies every external program is on the PATH before any
// work starts.
func checkHostTools(tools []string) error {
	var missing []string
	for _, tool := range tools {
		_, _, err := shell.Execute("sh", "-c", "command -v -- "+tool)
		if err != nil {
			missing = append(missing, tool)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required host tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (b *Builder) chrootDirPath() string {
	return filepath.Join(b.buildDirPath, "chroot")
}

func (b *Builder) stagingDirPath() string {
	return filepath.Join(b.buildDirPath, "image")
}

func (b *Builder) isoTempPath() string {
	return b.outputIsoPath + ".partial"
}

// phases returns the fixed total stage order of the pipeline.
func (b *Builder) phases() []phase {
	return []phase{
		{StateBootstrapping, b.bootstrapStages()},
		{StateConfiguring, b.configurationStages()},
		{StatePackageInstalling, b.packageStages()},
		{StateCleaning, b.cleanupStages()},
		{StateUnmounted, b.unmountStages()},
		{StateAssembling, b.assemblyStages()},
	}
}

// run executes the phases in order. On any failure the resource guard
// unwinds every still-held OS resource, the work directory is deleted so no
// partial artifact can be mistaken for a real image, and the first fatal
// stage's failure is returned.
func (b *Builder) run(phases []phase) (err error) {
	// ReleaseAll is idempotent; the defer covers panics and early returns,
	// the explicit calls below cover the normal paths.
	defer b.guard.ReleaseAll()

	err = b.prepareBuildDir()
	if err != nil {
		b.setState(StateFailed)
		return err
	}

	for _, p := range phases {
		b.setState(p.state)

		err = b.runner.Run(p.stages)
		if err != nil {
			b.fail()
			return err
		}
	}

	err = b.finalize()
	if err != nil {
		b.fail()
		return err
	}

	b.setState(StateDone)
	logger.Log.Infof("Build complete: %s", b.outputIsoPath)
	if names := b.ExtraDebNames(); len(names) > 0 {
		logger.Log.Infof("Included local package archives: %s", strings.Join(names, ", "))
	}
	return nil
}

func (b *Builder) setState(state PipelineState) {
	logger.Log.Debugf("Pipeline state: %s -> %s", b.state, state)
	b.state = state
}

// State returns the pipeline's current state.
func (b *Builder) State() PipelineState {
	return b.state
}

// StageRecords returns diagnostics for every dispatched stage.
func (b *Builder) StageRecords() []StageRecord {
	return b.runner.Records()
}

// prepareBuildDir creates a fresh work directory. A directory left behind by
// an unclean exit is force-removed: any mounts still live under it are
// unmounted first (deepest first), loudly, so re-runs are idempotent instead
// of failing on stale state.
func (b *Builder) prepareBuildDir() error {
	exists, err := dirExists(b.buildDirPath)
	if err != nil {
		return err
	}

	if exists {
		logger.Log.Warnf("Work directory (%s) already exists, force removing stale state", b.buildDirPath)

		err = unmountStaleMounts(b.buildDirPath)
		if err != nil {
			return err
		}

		err = os.RemoveAll(b.buildDirPath)
		if err != nil {
			return fmt.Errorf("failed to remove stale work directory (%s):\n%w", b.buildDirPath, err)
		}
	}

	for _, dir := range []string{b.chrootDirPath(), b.stagingDirPath()} {
		err = os.MkdirAll(dir, os.ModePerm)
		if err != nil {
			// Nothing is mounted yet, so whatever half of the work tree got
			// created can be removed outright.
			b.removeWorkDir()
			return fmt.Errorf("failed to create work directory (%s):\n%w", dir, err)
		}
	}

	return nil
}

func unmountStaleMounts(workDirPath string) error {
	mounts, err := mountinfo.GetMounts(mountinfo.PrefixFilter(workDirPath))
	if err != nil {
		return fmt.Errorf("failed to query mount table for (%s):\n%w", workDirPath, err)
	}

	// Deepest mount points first, so nested mounts release before their
	// parents.
	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].Mountpoint) > len(mounts[j].Mountpoint)
	})

	for _, mount := range mounts {
		logger.Log.Warnf("Unmounting stale mount (%s)", mount.Mountpoint)
		err = unix.Unmount(mount.Mountpoint, unix.MNT_DETACH)
		if err != nil {
			return fmt.Errorf("failed to unmount stale mount (%s):\n%w", mount.Mountpoint, err)
		}
	}

	return nil
}

// fail transitions to the absorbing Failed state: release every held OS
// resource, delete the work tree, and discard any partial ISO. An existing
// ISO at the output path is left unchanged.
func (b *Builder) fail() {
	b.setState(StateFailed)
	b.guard.ReleaseAll()
	b.removeWorkDir()

	err := os.Remove(b.isoTempPath())
	if err != nil && !os.IsNotExist(err) {
		logger.Log.Warnf("Failed to remove partial ISO (%s): %v", b.isoTempPath(), err)
	}
}

// finalize publishes the ISO and tears down the work directory. The ISO is
// written to a temporary name during assembly and renamed here, so an
// existing output file is never replaced with a truncated image.
func (b *Builder) finalize() error {
	exists, err := fileExists(b.isoTempPath())
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w:\nassembly did not produce an image at (%s)", ErrAssembly, b.isoTempPath())
	}

	err = os.Rename(b.isoTempPath(), b.outputIsoPath)
	if err != nil {
		return fmt.Errorf("%w:\nfailed to publish ISO to (%s):\n%w", ErrAssembly, b.outputIsoPath, err)
	}

	b.removeWorkDir()
	return nil
}

func (b *Builder) removeWorkDir() {
	err := os.RemoveAll(b.buildDirPath)
	if err != nil {
		logger.Log.Warnf("Failed to remove work directory (%s): %v", b.buildDirPath, err)
	}
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat (%s):\n%w", path, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("path (%s) exists and is not a directory", path)
	}
	return true, nil
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat (%s):\n%w", path, err)
	}
	return !info.IsDir(), nil
}
