// Licensed under the MIT License.

package ubuildlib

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moby/sys/mountinfo"
	"github.com/snnbyyds/ubuntu-build/internal/envfile"
	"github.com/snnbyyds/ubuntu-build/internal/file"
	"github.com/snnbyyds/ubuntu-build/internal/initrdutils"
	"github.com/snnbyyds/ubuntu-build/internal/isogenerator"
	"github.com/snnbyyds/ubuntu-build/internal/isoinspect"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
)

const (
	// liveDirName is the directory inside the ISO the live-boot hook scans
	// for the kernel, initrd, and compressed root filesystem.
	liveDirName = "casper"

	squashfsFileName = "filesystem.squashfs"
	kernelFileName   = "vmlinuz"
	initrdFileName   = "initrd"

	liveBootKernelArg = "boot=casper"

	releaseNotesUrl = "https://wiki.ubuntu.com/ReleaseNotes"
)

func (b *Builder) assemblyStages() []Stage {
	return []Stage{
		{Name: "confirm root tree is settled", Action: b.confirmChrootSettled},
		{Name: "stage kernel and initrd", Action: b.stageKernelAndInitrd},
		{Name: "record filesystem size", Action: b.writeFilesystemSize},
		{Name: "generate package manifest", Action: b.writeManifests},
		{Name: "compress root filesystem", Action: b.compressRootFilesystem},
		{Name: "write disc metadata", Action: b.writeDiscMetadata},
		{Name: "write boot menu", Action: b.writeBootMenu},
		{Name: "build EFI boot image", Action: b.buildEfiBootImage},
		{Name: "master ISO image", Action: b.masterIso},
		{Name: "verify ISO image", Action: b.verifyIso},
	}
}

func (b *Builder) liveDirPath() string {
	return filepath.Join(b.stagingDirPath(), liveDirName)
}

// confirmChrootSettled verifies nothing is still mounted under the built
// tree. The compressor walks the whole tree, so a live mount that slipped
// past the unmount phase would leak host state into the image.
func (b *Builder) confirmChrootSettled() error {
	mounts, err := mountinfo.GetMounts(mountinfo.PrefixFilter(b.chrootDirPath()))
	if err != nil {
		return fmt.Errorf("failed to query mount table for (%s):\n%w", b.chrootDirPath(), err)
	}

	if len(mounts) > 0 {
		return fmt.Errorf("%w:\nroot tree (%s) still has (%d) live mounts",
			ErrAssembly, b.chrootDirPath(), len(mounts))
	}
	return nil
}

// stageKernelAndInitrd copies the newest installed kernel and its initrd out
// of the built tree into the staging tree, then confirms the initrd actually
// carries the live-boot hook. An initrd without it boots to an initramfs
// prompt instead of the live session, so the check is fatal.
func (b *Builder) stageKernelAndInitrd() error {
	version, err := newestKernelVersion(filepath.Join(b.chroot.RootDir(), "boot"))
	if err != nil {
		return err
	}

	logger.Log.Infof("Staging kernel (%s)", version)

	err = os.MkdirAll(b.liveDirPath(), os.ModePerm)
	if err != nil {
		return err
	}

	kernelSrc := filepath.Join(b.chroot.RootDir(), "boot", "vmlinuz-"+version)
	initrdSrc := filepath.Join(b.chroot.RootDir(), "boot", "initrd.img-"+version)

	err = file.Copy(kernelSrc, filepath.Join(b.liveDirPath(), kernelFileName))
	if err != nil {
		return err
	}

	initrdDst := filepath.Join(b.liveDirPath(), initrdFileName)
	err = file.Copy(initrdSrc, initrdDst)
	if err != nil {
		return err
	}

	return initrdutils.VerifyLiveBootHook(initrdDst)
}

// newestKernelVersion picks the highest version among the installed kernels.
func newestKernelVersion(bootDirPath string) (string, error) {
	entries, err := os.ReadDir(bootDirPath)
	if err != nil {
		return "", fmt.Errorf("failed to list (%s):\n%w", bootDirPath, err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "vmlinuz-") {
			versions = append(versions, strings.TrimPrefix(name, "vmlinuz-"))
		}
	}

	if len(versions) == 0 {
		return "", fmt.Errorf("%w:\nno kernel found under (%s)", ErrAssembly, bootDirPath)
	}

	sort.Strings(versions)
	return versions[len(versions)-1], nil
}

// writeFilesystemSize records the uncompressed size of the root tree. The
// installer reads it to check the target disk is large enough.
func (b *Builder) writeFilesystemSize() error {
	size, err := treeSizeBytes(b.chroot.RootDir())
	if err != nil {
		return err
	}

	return file.Write(strconv.FormatInt(size, 10)+"\n",
		filepath.Join(b.liveDirPath(), "filesystem.size"))
}

func treeSizeBytes(rootDirPath string) (int64, error) {
	var total int64

	err := filepath.WalkDir(rootDirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure root tree (%s):\n%w", rootDirPath, err)
	}

	return total, nil
}

// writeManifests records every installed package with its version. The
// installer consumes both copies: the full manifest describes the live
// session, the desktop manifest what survives installation.
func (b *Builder) writeManifests() error {
	stdout, _, err := b.chroot.RunCaptureOutput(nil,
		"dpkg-query", "-W", "--showformat=${Package} ${Version}\n")
	if err != nil {
		return fmt.Errorf("failed to query installed packages:\n%w", err)
	}

	return writeManifestFiles(stdout, b.liveDirPath())
}

// writeManifestFiles stores the manifest twice, byte-identical: once for the
// live session and once for what the installer copies to the target disk.
func writeManifestFiles(manifest string, liveDirPath string) error {
	err := file.Write(manifest, filepath.Join(liveDirPath, "filesystem.manifest"))
	if err != nil {
		return err
	}

	return file.Write(manifest, filepath.Join(liveDirPath, "filesystem.manifest-desktop"))
}

// MksquashfsArgs builds the compressor invocation. The boot directory is
// excluded: the kernel and initrd are staged as plain files beside the
// squashfs, where the boot loader can read them.
func MksquashfsArgs(rootDirPath string, outputPath string, compression ubuildapi.Compression,
	arch ubuildapi.Architecture,
) []string {
	args := []string{
		rootDirPath, outputPath,
		"-noappend",
		"-e", "boot",
		"-comp", string(compression.Codec),
		"-b", compression.BlockSize,
	}

	if compression.Codec == ubuildapi.CompressionCodecXz {
		filter := compression.BcjFilter
		if filter == "" {
			filter = arch.BcjFilter()
		}
		if filter != "" {
			args = append(args, "-Xbcj", filter)
		}
	}

	if compression.Processors > 0 {
		args = append(args, "-processors", strconv.Itoa(compression.Processors))
	}

	return args
}

func (b *Builder) compressRootFilesystem() error {
	outputPath := filepath.Join(b.liveDirPath(), squashfsFileName)
	args := MksquashfsArgs(b.chroot.RootDir(), outputPath, b.config.Compression, b.config.Architecture)

	err := shell.ExecuteLive(true, "mksquashfs", args...)
	if err != nil {
		return fmt.Errorf("%w:\nfailed to compress root filesystem:\n%w", ErrAssembly, err)
	}
	return nil
}

// distroRelease is read back from the built tree's os-release file, so the
// disc metadata describes what was actually installed rather than what the
// config asked for.
type distroRelease struct {
	Name    string
	Version string
}

func (b *Builder) readDistroRelease() distroRelease {
	release := distroRelease{Name: "Ubuntu"}

	values, err := envfile.ParseEnvFile(filepath.Join(b.chroot.RootDir(), "etc/os-release"))
	if err != nil {
		logger.Log.Warnf("Failed to read os-release, using defaults: %v", err)
		return release
	}

	if name := values["NAME"]; name != "" {
		release.Name = name
	}
	release.Version = values["VERSION"]
	return release
}

// volumeLabel prefers the configured label, then one derived from the built
// tree's os-release, e.g. "UBUNTU-24.04".
func (b *Builder) volumeLabel() string {
	if b.config.Iso.VolumeLabel != "" {
		return b.config.Iso.VolumeLabel
	}

	values, err := envfile.ParseEnvFile(filepath.Join(b.chroot.RootDir(), "etc/os-release"))
	if err == nil {
		if label := deriveVolumeLabel(values["NAME"], values["VERSION_ID"]); label != "" {
			return label
		}
	}
	return isogenerator.DefaultVolumeId
}

func deriveVolumeLabel(name string, versionId string) string {
	if name == "" {
		return ""
	}

	label := strings.ToUpper(name)
	if versionId != "" {
		label += "-" + versionId
	}

	// ISO-9660 volume identifiers: 32 chars max, no whitespace.
	label = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '-'
		}
	}, label)

	if len(label) > 32 {
		label = label[:32]
	}
	return label
}

// writeDiscMetadata stamps the .disk directory the installer and the boot
// menu's disc-search rely on.
func (b *Builder) writeDiscMetadata() error {
	release := b.readDistroRelease()

	info := fmt.Sprintf("%s %s - Release %s (%s)\n",
		release.Name, release.Version, b.config.Architecture, time.Now().Format("20060102"))

	err := file.Write(info, filepath.Join(b.stagingDirPath(), ".disk", "info"))
	if err != nil {
		return err
	}

	err = file.Write(releaseNotesUrl+"\n",
		filepath.Join(b.stagingDirPath(), ".disk", "release_notes_url"))
	if err != nil {
		return err
	}

	return file.Write("full_cd/single\n", filepath.Join(b.stagingDirPath(), ".disk", "cd_type"))
}

func (b *Builder) grubCfgParams() isogenerator.GrubCfgParams {
	return isogenerator.GrubCfgParams{
		DistroName:  b.readDistroRelease().Name,
		KernelPath:  "/" + liveDirName + "/" + kernelFileName,
		InitrdPath:  "/" + liveDirName + "/" + initrdFileName,
		LiveBootArg: liveBootKernelArg,
	}
}

// writeBootMenu writes the menu the boot loader shows, plus the loopback
// variant used when the ISO file is booted from a disk without being burned.
func (b *Builder) writeBootMenu() error {
	params := b.grubCfgParams()

	err := file.Write(isogenerator.RenderGrubCfg(params),
		filepath.Join(b.stagingDirPath(), "boot/grub/grub.cfg"))
	if err != nil {
		return err
	}

	return file.Write(isogenerator.RenderLoopbackCfg(params),
		filepath.Join(b.stagingDirPath(), "boot/grub/loopback.cfg"))
}

func (b *Builder) buildEfiBootImage() error {
	bootFiles, err := isogenerator.LocateBootFiles(b.chroot.RootDir(), b.config.Architecture)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrAssembly, err)
	}

	err = isogenerator.CheckBootFilesFit(bootFiles)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrAssembly, err)
	}

	efiBootImgPath := filepath.Join(b.stagingDirPath(), isogenerator.EfiBootImgPathRelativeToIsoRoot)
	grubCfg := isogenerator.RenderGrubCfg(b.grubCfgParams())
	err = isogenerator.BuildEfiBootImage(b.buildDirPath, efiBootImgPath, bootFiles, grubCfg, b.guard)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrAssembly, err)
	}
	return nil
}

func (b *Builder) masterIso() error {
	err := isogenerator.GenerateIso(isogenerator.IsoGenConfig{
		BuildDirPath:   b.buildDirPath,
		StagingDirPath: b.stagingDirPath(),
		OutputFilePath: b.isoTempPath(),
		VolumeId:       b.volumeLabel(),
		ApplicationId:  b.config.Iso.ApplicationId,
	})
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrAssembly, err)
	}
	return nil
}

// verifyIso reads the produced image back before it is published.
func (b *Builder) verifyIso() error {
	requiredPaths := []string{
		liveDirName + "/" + squashfsFileName,
		liveDirName + "/" + kernelFileName,
		liveDirName + "/" + initrdFileName,
		"boot/grub/grub.cfg",
		".disk/info",
	}

	err := isoinspect.VerifyImage(b.isoTempPath(), b.volumeLabel(), requiredPaths)
	if err != nil {
		return fmt.Errorf("%w:\n%w", ErrAssembly, err)
	}
	return nil
}
