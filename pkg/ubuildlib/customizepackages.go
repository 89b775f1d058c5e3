// Licensed under the MIT License.

package ubuildlib

import (
	"fmt"
	"path/filepath"

	"github.com/snnbyyds/ubuntu-build/internal/file"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
)

// packageStages generates the installation stages from the declarative
// package selection: one stage per tagged set, plus the side-loaded archives,
// locale generation, and the installer hook. Installs are fatal; only the
// cleanup-phase purges are best-effort.
func (b *Builder) packageStages() []Stage {
	stages := []Stage{
		{Name: "update package index", Action: b.aptUpdate},
		{Name: "upgrade base packages", Action: b.aptUpgrade},
	}

	for _, set := range b.config.Packages.Sets {
		set := set
		stages = append(stages, Stage{
			Name: fmt.Sprintf("install package set (%s)", set.Name),
			Action: func() error {
				return b.installPackages(set.Packages)
			},
		})
	}

	if len(b.config.Packages.ExtraDebs) > 0 {
		stages = append(stages, Stage{Name: "install extra package archives", Action: b.installExtraDebs})
	}

	stages = append(stages,
		Stage{Name: "generate locale", Action: b.generateLocale},
		Stage{Name: "configure timezone", Action: b.configureTimezone},
	)

	if len(b.config.InstallerSetupCommands) > 0 {
		stages = append(stages, Stage{Name: "configure guided installer", Action: b.runInstallerSetup})
	}

	return stages
}

func (b *Builder) aptUpdate() error {
	return b.chroot.Run(nil, "apt-get", "update")
}

func (b *Builder) aptUpgrade() error {
	return b.chroot.Run(nil, "apt-get", "-y", "upgrade")
}

func (b *Builder) installPackages(packages []string) error {
	args := append([]string{"install", "-y"}, packages...)
	return b.chroot.Run(nil, "apt-get", args...)
}

// purgePackages removes the configured purge list. Packages that are not
// installed make the tool exit non-zero, which is exactly the "doesn't
// exist" failure the stage's ignorable flag covers.
func (b *Builder) purgePackages() error {
	if len(b.config.Packages.Purge) == 0 {
		return nil
	}

	args := append([]string{"purge", "-y"}, b.config.Packages.Purge...)
	return b.chroot.Run(nil, "apt-get", args...)
}

func (b *Builder) autoremovePackages() error {
	return b.chroot.Run(nil, "apt-get", "autoremove", "-y", "--purge")
}

func (b *Builder) cleanPackageCache() error {
	return b.chroot.Run(nil, "apt-get", "clean")
}

// installExtraDebs copies each locally supplied archive into the jail and
// installs it with its dependencies, in the configured order.
func (b *Builder) installExtraDebs() error {
	for _, debPath := range b.config.Packages.ExtraDebs {
		hostPath := file.GetAbsPathWithBase(b.baseConfigDirPath, debPath)
		debName := filepath.Base(hostPath)
		jailPath := filepath.Join("/tmp", debName)

		logger.Log.Infof("Installing extra package archive (%s)", debName)

		err := file.Copy(hostPath, filepath.Join(b.chroot.RootDir(), "tmp", debName))
		if err != nil {
			return err
		}

		err = b.chroot.Run(nil, "apt-get", "install", "-y", jailPath)
		if err != nil {
			return fmt.Errorf("failed to install extra package archive (%s):\n%w", debName, err)
		}

		err = b.chroot.Run(nil, "rm", "-f", jailPath)
		if err != nil {
			return err
		}

		b.extraDebNames = append(b.extraDebNames, debName)
	}

	return nil
}

// ExtraDebNames returns the ordered list of locally supplied archives that
// were installed.
func (b *Builder) ExtraDebNames() []string {
	return append([]string(nil), b.extraDebNames...)
}

func (b *Builder) generateLocale() error {
	locale := b.config.Locale
	if locale == "" {
		locale = "en_US.UTF-8"
	}

	err := b.chroot.Run(nil, "locale-gen", locale)
	if err != nil {
		return err
	}
	return b.chroot.Run(nil, "update-locale", fmt.Sprintf("LANG=%s", locale))
}

func (b *Builder) configureTimezone() error {
	timezone := b.config.Timezone
	if timezone == "" {
		timezone = "Etc/UTC"
	}

	err := file.Write(timezone+"\n", filepath.Join(b.chroot.RootDir(), "etc/timezone"))
	if err != nil {
		return err
	}

	env := []string{fmt.Sprintf("TZ=%s", timezone)}
	return b.chroot.Run(env, "dpkg-reconfigure", "--frontend=noninteractive", "tzdata")
}

// runInstallerSetup runs the post-install hook that reconfigures the guided
// installer inside the image.
func (b *Builder) runInstallerSetup() error {
	for _, command := range b.config.InstallerSetupCommands {
		err := b.chroot.Run(nil, "sh", "-c", command)
		if err != nil {
			return fmt.Errorf("installer setup command (%s) failed:\n%w", command, err)
		}
	}
	return nil
}

// defaultPackageSelection is applied when the config names no package sets:
// the minimum a live image needs to boot from the compressed filesystem and
// offer the guided installer.
func defaultPackageSelection(arch ubuildapi.Architecture) ubuildapi.PackageSelection {
	grubSigned := "grub-efi-amd64-signed"
	if arch == ubuildapi.ArchitectureArm64 {
		grubSigned = "grub-efi-arm64-signed"
	}

	return ubuildapi.PackageSelection{
		Sets: []ubuildapi.PackageSet{
			{
				Name: "system",
				Packages: []string{
					"systemd-sysv",
					"locales",
					"linux-generic",
				},
			},
			{
				Name: "live-boot",
				Packages: []string{
					"casper",
					"discover",
					"laptop-detect",
					"os-prober",
					"network-manager",
					"net-tools",
				},
			},
			{
				Name: "boot-loader",
				Packages: []string{
					grubSigned,
					"shim-signed",
				},
			},
			{
				Name: "installer",
				Packages: []string{
					"ubiquity",
					"ubiquity-casper",
					"ubiquity-frontend-gtk",
					"ubiquity-slideshow-ubuntu",
					"ubiquity-ubuntu-artwork",
				},
			},
		},
		Purge: []string{
			"aisleriot",
			"gnome-mahjongg",
			"gnome-mines",
			"gnome-sudoku",
			"hitori",
			"transmission-common",
			"transmission-gtk",
		},
	}
}
