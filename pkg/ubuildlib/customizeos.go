// Licensed under the MIT License.

package ubuildlib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/snnbyyds/ubuntu-build/internal/file"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
	"gopkg.in/yaml.v3"
)

const defaultHostname = "ubuntu-live"

func (b *Builder) configurationStages() []Stage {
	return []Stage{
		{Name: "configure hostname", Action: b.writeHostname},
		{Name: "configure package sources", Action: b.writeSourcesList},
		{Name: "configure network", Action: b.writeNetplan},
		{Name: "divert initctl", Action: b.divertInitctl},
		{Name: "create live user", Action: b.createLiveUser},
	}
}

func (b *Builder) cleanupStages() []Stage {
	return []Stage{
		{Name: "purge unwanted packages", Action: b.purgePackages, IgnorableFailure: true},
		{Name: "remove orphaned packages", Action: b.autoremovePackages, IgnorableFailure: true},
		{Name: "clean package cache", Action: b.cleanPackageCache, IgnorableFailure: true},
		{Name: "remove initctl diversion", Action: b.removeInitctlDiversion, IgnorableFailure: true},
		{Name: "truncate machine id", Action: b.truncateMachineId},
		{Name: "remove temporary files", Action: b.removeTemporaryFiles, IgnorableFailure: true},
	}
}

func (b *Builder) hostname() string {
	if b.config.Hostname != "" {
		return b.config.Hostname
	}
	return defaultHostname
}

func (b *Builder) writeHostname() error {
	hostname := b.hostname()

	err := file.Write(hostname+"\n", filepath.Join(b.chroot.RootDir(), "etc/hostname"))
	if err != nil {
		return err
	}

	hosts := fmt.Sprintf("127.0.0.1\tlocalhost\n127.0.1.1\t%s\n\n"+
		"::1\t\tip6-localhost ip6-loopback\nff02::1\t\tip6-allnodes\nff02::2\t\tip6-allrouters\n",
		hostname)
	return file.Write(hosts, filepath.Join(b.chroot.RootDir(), "etc/hosts"))
}

// RenderSourcesList produces the image's apt sources for the release and
// mirror, covering the release, updates, and security suites.
func RenderSourcesList(config *ubuildapi.Config) string {
	const components = "main restricted universe multiverse"

	return fmt.Sprintf(
		"deb %[1]s %[2]s %[3]s\n"+
			"deb %[1]s %[2]s-updates %[3]s\n"+
			"deb %[1]s %[2]s-security %[3]s\n",
		config.Mirror, config.Release, components)
}

func (b *Builder) writeSourcesList() error {
	return file.Write(RenderSourcesList(b.config),
		filepath.Join(b.chroot.RootDir(), "etc/apt/sources.list"))
}

type netplanNetwork struct {
	Version  int    `yaml:"version"`
	Renderer string `yaml:"renderer"`
}

type netplanConfig struct {
	Network netplanNetwork `yaml:"network"`
}

// writeNetplan hands all interfaces to NetworkManager, which the live
// desktop expects to own networking.
func (b *Builder) writeNetplan() error {
	config := netplanConfig{
		Network: netplanNetwork{
			Version:  2,
			Renderer: "NetworkManager",
		},
	}

	content, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to render netplan config:\n%w", err)
	}

	return file.Write(string(content),
		filepath.Join(b.chroot.RootDir(), "etc/netplan/01-network-manager-all.yaml"))
}

// divertInitctl keeps package maintainer scripts from starting services
// inside the jail during installation.
func (b *Builder) divertInitctl() error {
	err := b.chroot.Run(nil, "dpkg-divert", "--local", "--rename", "--add", "/sbin/initctl")
	if err != nil {
		return err
	}
	return b.chroot.Run(nil, "ln", "-sf", "/bin/true", "/sbin/initctl")
}

func (b *Builder) removeInitctlDiversion() error {
	err := b.chroot.Run(nil, "rm", "-f", "/sbin/initctl")
	if err != nil {
		return err
	}
	return b.chroot.Run(nil, "dpkg-divert", "--rename", "--remove", "/sbin/initctl")
}

// truncateMachineId empties the machine id so every booted live system
// generates its own instead of all sharing the build machine's.
func (b *Builder) truncateMachineId() error {
	err := file.Write("", filepath.Join(b.chroot.RootDir(), "etc/machine-id"))
	if err != nil {
		return err
	}

	// /var/lib/dbus/machine-id must be a symlink to /etc/machine-id, or
	// dbus regenerates a divergent one at boot.
	dbusMachineId := filepath.Join(b.chroot.RootDir(), "var/lib/dbus/machine-id")
	err = os.RemoveAll(dbusMachineId)
	if err != nil {
		return fmt.Errorf("failed to remove dbus machine id:\n%w", err)
	}
	err = os.MkdirAll(filepath.Dir(dbusMachineId), os.ModePerm)
	if err != nil {
		return err
	}
	err = os.Symlink("/etc/machine-id", dbusMachineId)
	if err != nil {
		return fmt.Errorf("failed to link dbus machine id:\n%w", err)
	}
	return nil
}

func (b *Builder) removeTemporaryFiles() error {
	rootDir := b.chroot.RootDir()

	tmpEntries, err := os.ReadDir(filepath.Join(rootDir, "tmp"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to list (%s):\n%w", filepath.Join(rootDir, "tmp"), err)
	}
	for _, entry := range tmpEntries {
		err = os.RemoveAll(filepath.Join(rootDir, "tmp", entry.Name()))
		if err != nil {
			return err
		}
	}

	for _, path := range []string{"root/.bash_history", "var/lib/apt/lists/lock", "var/cache/apt/archives/lock"} {
		err = os.RemoveAll(filepath.Join(rootDir, path))
		if err != nil {
			return err
		}
	}

	return nil
}
