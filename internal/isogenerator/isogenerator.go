// Licensed under the MIT License.

// Package isogenerator builds the EFI system partition image and masters the
// final hybrid ISO-9660 disc image.
package isogenerator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/snnbyyds/ubuntu-build/internal/file"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/safeloopback"
	"github.com/snnbyyds/ubuntu-build/internal/safemount"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
)

const (
	DefaultVolumeId = "UBUNTU-LIVE"

	// EfiBootImgPathRelativeToIsoRoot is where the EFI system partition
	// image lives inside the ISO staging tree. The El Torito alternate boot
	// entry and the appended GPT partition both reference this file.
	EfiBootImgPathRelativeToIsoRoot = "boot/grub/efiboot.img"

	// EfiBootImageBytes is the fixed size of the EFI system partition image.
	// The size is a convention, not computed from content: it merely has to
	// be large enough for the boot loader and menu, which are well under a
	// few MB.
	EfiBootImageBytes = 20 * 1024 * 1024

	// efiBootImageSlackBytes accounts for FAT filesystem overhead when
	// checking that the boot files fit.
	efiBootImageSlackBytes = 1024 * 1024

	efiBootDirRelativePath = "EFI/BOOT"
)

// BootFile is a boot-loader binary staged into the EFI system partition.
type BootFile struct {
	// SourcePath is the absolute path of the binary on the build host
	// (inside the built root tree).
	SourcePath string
	// Name is the file name inside EFI/BOOT.
	Name string
}

// IsoGenConfig describes one ISO mastering run.
type IsoGenConfig struct {
	// Directory where temporary files can be stored.
	BuildDirPath string
	// Directory holding the ISO contents. Everything in it ends up in the
	// image.
	StagingDirPath string
	// The path where the ISO file will be written.
	OutputFilePath string
	VolumeId       string
	ApplicationId  string
}

// LocateBootFiles finds the platform boot-loader binaries inside the built
// root tree. A missing boot loader is fatal and reported before any ISO
// write is attempted: better to abort early than produce an unbootable
// artifact.
func LocateBootFiles(rootDir string, arch ubuildapi.Architecture) ([]BootFile, error) {
	shimCandidates := []string{
		filepath.Join(rootDir, "usr/lib/shim", arch.EfiBootFileName()+".signed"),
		filepath.Join(rootDir, "usr/lib/shim/shimx64.efi.signed.latest"),
		filepath.Join(rootDir, "usr/lib/shim/shimx64.efi.signed"),
		filepath.Join(rootDir, "usr/lib/shim/shimaa64.efi.signed"),
	}
	grubCandidates := []string{
		filepath.Join(rootDir, "usr/lib/grub", arch.GrubPlatformDir()+"-signed", "grubnetx64.efi.signed"),
		filepath.Join(rootDir, "usr/lib/grub", arch.GrubPlatformDir()+"-signed", "grub"+trimEfiSuffix(arch.GrubEfiFileName())+".efi.signed"),
		filepath.Join(rootDir, "boot/efi", efiBootDirRelativePath, arch.GrubEfiFileName()),
	}

	shimPath := firstExisting(shimCandidates)
	grubPath := firstExisting(grubCandidates)

	if shimPath == "" && grubPath == "" {
		return nil, fmt.Errorf("no boot-loader binary found in root tree (%s) for architecture (%s)", rootDir, arch)
	}

	bootFiles := []BootFile{}
	if shimPath != "" {
		// Shim is the first stage and takes the removable-media name.
		bootFiles = append(bootFiles, BootFile{SourcePath: shimPath, Name: arch.EfiBootFileName()})
		if grubPath != "" {
			bootFiles = append(bootFiles, BootFile{SourcePath: grubPath, Name: arch.GrubEfiFileName()})
		}
	} else {
		// No shim: grub boots directly under the removable-media name.
		bootFiles = append(bootFiles, BootFile{SourcePath: grubPath, Name: arch.EfiBootFileName()})
	}

	return bootFiles, nil
}

func trimEfiSuffix(name string) string {
	base := name
	if ext := filepath.Ext(base); ext == ".efi" {
		base = base[:len(base)-len(ext)]
	}
	if len(base) > 4 && base[:4] == "grub" {
		base = base[4:]
	}
	return base
}

func firstExisting(candidates []string) string {
	for _, candidate := range candidates {
		exists, err := file.Exists(candidate)
		if err == nil && exists {
			return candidate
		}
	}
	return ""
}

// CheckBootFilesFit verifies the boot files fit into the fixed-size image,
// leaving room for filesystem overhead. An oversized boot loader is an
// error, never a silent truncation.
func CheckBootFilesFit(bootFiles []BootFile) error {
	var total int64
	for _, bootFile := range bootFiles {
		info, err := os.Stat(bootFile.SourcePath)
		if err != nil {
			return fmt.Errorf("failed to stat boot file (%s):\n%w", bootFile.SourcePath, err)
		}
		total += info.Size()
	}

	if total > EfiBootImageBytes-efiBootImageSlackBytes {
		return fmt.Errorf("boot files (%d bytes) do not fit in the EFI boot image (%d bytes)",
			total, EfiBootImageBytes)
	}

	return nil
}

// ResourceGuard registers release callbacks that run if the build is torn
// down, including on a termination signal, before the acquiring code can
// release the resource itself. safeguard.Guard implements it.
type ResourceGuard interface {
	Add(name string, release func() error) (remove func())
}

// BuildEfiBootImage produces the FAT-formatted EFI system partition image at
// efiBootImgPath: a fixed-size file, formatted, loop-attached, mounted, and
// populated with the standard EFI directory layout, the boot-loader
// binaries, and the boot menu descriptor. The loop device and the mount are
// registered with the guard for as long as they are held, so a signal
// arriving mid-populate still detaches them.
func BuildEfiBootImage(buildDirPath string, efiBootImgPath string, bootFiles []BootFile, grubCfg string,
	guard ResourceGuard,
) (err error) {
	logger.Log.Infof("Building EFI boot image (%s)", efiBootImgPath)

	err = CheckBootFilesFit(bootFiles)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(efiBootImgPath), os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create EFI boot image directory:\n%w", err)
	}

	const blockSizeInBytes = 1024 * 1024

	ddArgs := []string{
		"if=/dev/zero",
		fmt.Sprintf("of=%s", efiBootImgPath),
		fmt.Sprintf("bs=%d", blockSizeInBytes),
		fmt.Sprintf("count=%d", EfiBootImageBytes/blockSizeInBytes),
	}
	// Note: dd has a noisy stderr.
	err = shell.ExecuteLive(true /*squashErrors*/, "dd", ddArgs...)
	if err != nil {
		return fmt.Errorf("failed to create empty EFI boot image:\n%w", err)
	}

	err = shell.ExecuteLive(true /*squashErrors*/, "mkfs.vfat", "-F", "16", efiBootImgPath)
	if err != nil {
		return fmt.Errorf("failed to format EFI boot image:\n%w", err)
	}

	return populateEfiBootImage(safeloopback.DefaultRunner(), safemount.DefaultBackend(), guard,
		buildDirPath, efiBootImgPath, bootFiles, grubCfg)
}

// populateEfiBootImage loop-attaches the formatted image, mounts it, and
// writes the boot files and boot menu into it.
func populateEfiBootImage(runner safeloopback.Runner, backend safemount.Backend, guard ResourceGuard,
	buildDirPath string, efiBootImgPath string, bootFiles []BootFile, grubCfg string,
) (err error) {
	loopback, err := safeloopback.NewLoopbackWithRunner(runner, efiBootImgPath)
	if err != nil {
		return fmt.Errorf("failed to connect EFI boot image:\n%w", err)
	}
	defer loopback.Close()
	removeLoopback := guard.Add("EFI boot image loop device", loopback.CleanClose)
	defer removeLoopback()

	mountDir := filepath.Join(buildDirPath, "efiboot_mount")
	mount, err := safemount.NewMountWithBackend(backend, loopback.DevicePath(), mountDir, "vfat", 0, "",
		true /*makeAndDeleteDir*/)
	if err != nil {
		return fmt.Errorf("failed to mount EFI boot image:\n%w", err)
	}
	defer mount.Close()
	removeMount := guard.Add("EFI boot image mount", mount.CleanClose)
	defer removeMount()

	bootDir := filepath.Join(mountDir, efiBootDirRelativePath)
	err = os.MkdirAll(bootDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create EFI boot directory:\n%w", err)
	}

	for _, bootFile := range bootFiles {
		err = file.Copy(bootFile.SourcePath, filepath.Join(bootDir, bootFile.Name))
		if err != nil {
			return fmt.Errorf("failed to copy boot file (%s) into EFI boot image:\n%w", bootFile.Name, err)
		}
	}

	if grubCfg != "" {
		err = file.Write(grubCfg, filepath.Join(mountDir, "boot/grub/grub.cfg"))
		if err != nil {
			return fmt.Errorf("failed to write boot menu into EFI boot image:\n%w", err)
		}
	}

	err = mount.CleanClose()
	if err != nil {
		return fmt.Errorf("failed to unmount EFI boot image:\n%w", err)
	}

	err = loopback.CleanClose()
	if err != nil {
		return fmt.Errorf("failed to disconnect EFI boot image:\n%w", err)
	}

	return nil
}

// XorrisoArgs builds the ISO mastering invocation. The EFI system partition
// image is addressed twice: once as the El Torito alternate boot entry (for
// optical and virtual-CD boot) and once as an appended GPT partition of type
// EFI-System at partition index 2 (for raw-writing the ISO to a USB block
// device). Both addressings are required for the hybrid image to boot in
// both scenarios.
func XorrisoArgs(config IsoGenConfig) []string {
	efiBootImgPath := filepath.Join(config.StagingDirPath, EfiBootImgPathRelativeToIsoRoot)

	volumeId := config.VolumeId
	if volumeId == "" {
		volumeId = DefaultVolumeId
	}

	args := []string{
		"-as", "mkisofs",
		"-iso-level", "3",
		"-full-iso9660-filenames",
		"-J", "-joliet-long",
		"-volid", volumeId,
	}

	if config.ApplicationId != "" {
		args = append(args, "-appid", config.ApplicationId)
	}

	args = append(args,
		"-output", config.OutputFilePath,

		// UEFI bootloader, El Torito alternate boot entry, no emulation.
		"-eltorito-alt-boot",
		"-e", EfiBootImgPathRelativeToIsoRoot,
		"-no-emul-boot",

		// The same FAT image again, as a GPT EFI-System partition appended
		// at partition index 2.
		"-append_partition", "2", "0xef", efiBootImgPath,
		"-appended_part_as_gpt",
		"-partition_cyl_align", "all",

		config.StagingDirPath,
	)

	return args
}

// GenerateIso invokes the ISO mastering tool over the staging directory.
func GenerateIso(config IsoGenConfig) error {
	logger.Log.Infof("Generating ISO image (%s)", config.OutputFilePath)

	// Note: xorriso has a noisy stderr.
	err := shell.ExecuteLive(true /*squashErrors*/, "xorriso", XorrisoArgs(config)...)
	if err != nil {
		return fmt.Errorf("failed to generate ISO using xorriso:\n%w", err)
	}

	return nil
}
