// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"
)

// Architecture is the target CPU architecture of the built image.
type Architecture string

const (
	ArchitectureAmd64 Architecture = "amd64"
	ArchitectureArm64 Architecture = "arm64"
)

func SupportedArchitectures() []Architecture {
	return []Architecture{ArchitectureAmd64, ArchitectureArm64}
}

func (a Architecture) IsValid() error {
	switch a {
	case ArchitectureAmd64, ArchitectureArm64:
		return nil
	default:
		return fmt.Errorf("invalid architecture value (%s)", a)
	}
}

// EfiBootFileName returns the removable-media boot-loader file name UEFI
// firmware looks for on this architecture.
func (a Architecture) EfiBootFileName() string {
	switch a {
	case ArchitectureArm64:
		return "bootaa64.efi"
	default:
		return "bootx64.efi"
	}
}

// GrubEfiFileName returns the second-stage grub binary file name.
func (a Architecture) GrubEfiFileName() string {
	switch a {
	case ArchitectureArm64:
		return "grubaa64.efi"
	default:
		return "grubx64.efi"
	}
}

// GrubPlatformDir returns the grub platform directory name inside
// /usr/lib/grub.
func (a Architecture) GrubPlatformDir() string {
	switch a {
	case ArchitectureArm64:
		return "arm64-efi"
	default:
		return "x86_64-efi"
	}
}

// BcjFilter returns the xz byte-transform filter matching this
// architecture's machine code, or empty when none applies.
func (a Architecture) BcjFilter() string {
	switch a {
	case ArchitectureAmd64:
		return "x86"
	case ArchitectureArm64:
		return "arm64"
	default:
		return ""
	}
}
