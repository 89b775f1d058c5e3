// Licensed under the MIT License.

package isogenerator

import (
	"fmt"
	"strings"
)

// GrubCfgParams parameterizes the boot menu descriptor.
type GrubCfgParams struct {
	// DistroName appears in the menu entry titles.
	DistroName string
	// KernelPath and InitrdPath are ISO-absolute paths.
	KernelPath string
	InitrdPath string
	// LiveBootArg selects the live-boot mode on the kernel command line,
	// e.g. "boot=casper".
	LiveBootArg string
	// ExtraKernelArgs is appended to every entry's command line.
	ExtraKernelArgs string
}

type grubMenuEntry struct {
	title      string
	kernelArgs string
}

// RenderGrubCfg produces the boot menu offering the try-without-installing,
// install, and integrity-check entries.
func RenderGrubCfg(params GrubCfgParams) string {
	entries := []grubMenuEntry{
		{
			title:      fmt.Sprintf("Try %s without installing", params.DistroName),
			kernelArgs: "nopersistent toram quiet splash",
		},
		{
			title:      fmt.Sprintf("Install %s", params.DistroName),
			kernelArgs: "only-ubiquity quiet splash",
		},
		{
			title:      "Check disc for defects",
			kernelArgs: "integrity-check quiet splash",
		},
	}

	var builder strings.Builder

	builder.WriteString("search --set=root --file /.disk/info\n")
	builder.WriteString("insmod all_video\n")
	builder.WriteString("set default=\"0\"\n")
	builder.WriteString("set timeout=30\n")

	for _, entry := range entries {
		args := strings.TrimSpace(fmt.Sprintf("%s %s %s", params.LiveBootArg, entry.kernelArgs,
			params.ExtraKernelArgs))

		builder.WriteString("\n")
		builder.WriteString(fmt.Sprintf("menuentry \"%s\" {\n", entry.title))
		builder.WriteString(fmt.Sprintf("   linux %s %s ---\n", params.KernelPath, args))
		builder.WriteString(fmt.Sprintf("   initrd %s\n", params.InitrdPath))
		builder.WriteString("}\n")
	}

	return builder.String()
}

// RenderLoopbackCfg produces the descriptor grub reads when the ISO file
// itself sits on a USB disk and is loopback-mounted instead of being the
// boot medium ("loopback boot").
func RenderLoopbackCfg(params GrubCfgParams) string {
	args := strings.TrimSpace(fmt.Sprintf("%s iso-scan/filename=${iso_path} quiet splash %s",
		params.LiveBootArg, params.ExtraKernelArgs))

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("menuentry \"Try or Install %s\" {\n", params.DistroName))
	builder.WriteString(fmt.Sprintf("   linux %s %s ---\n", params.KernelPath, args))
	builder.WriteString(fmt.Sprintf("   initrd %s\n", params.InitrdPath))
	builder.WriteString("}\n")
	return builder.String()
}
