// Licensed under the MIT License.

package ubuildlib

import (
	"fmt"

	"github.com/snnbyyds/ubuntu-build/internal/shell"
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
)

const bootstrapComponents = "main,restricted,universe,multiverse"

func (b *Builder) bootstrapStages() []Stage {
	return []Stage{
		{Name: "bootstrap root filesystem", Action: b.runBootstrap},
		{Name: "mount virtual filesystems", Action: b.acquireChrootMounts},
	}
}

// DebootstrapArgs builds the bootstrap tool invocation: architecture,
// package-set variant, component list, release identifier, target directory,
// mirror URL.
func DebootstrapArgs(config *ubuildapi.Config, targetDirPath string) []string {
	return []string{
		fmt.Sprintf("--arch=%s", config.Architecture),
		"--variant=minbase",
		fmt.Sprintf("--components=%s", bootstrapComponents),
		string(config.Release),
		targetDirPath,
		config.Mirror,
	}
}

func (b *Builder) runBootstrap() error {
	err := shell.ExecuteLive(false /*squashErrors*/, "debootstrap",
		DebootstrapArgs(b.config, b.chrootDirPath())...)
	if err != nil {
		return fmt.Errorf("failed to bootstrap (%s/%s) from (%s):\n%w",
			b.config.Release, b.config.Architecture, b.config.Mirror, err)
	}
	return nil
}

// acquireChrootMounts attaches the jail's virtual filesystems and registers
// their release with the guard, so they are unwound on every exit path.
func (b *Builder) acquireChrootMounts() error {
	err := b.chroot.Initialize(nil)
	if err != nil {
		return err
	}

	b.guard.Add("chroot virtual filesystems", b.chroot.UnmountAll)
	return nil
}

func (b *Builder) unmountStages() []Stage {
	return []Stage{
		// The compressor must see a settled tree: assembly never starts
		// before this stage has completed.
		{Name: "unmount virtual filesystems", Action: b.chroot.UnmountAll},
	}
}
