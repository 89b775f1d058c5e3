// Licensed under the MIT License.

package ubuildlib

import (
	"github.com/snnbyyds/ubuntu-build/ubuildapi"
)

// DefaultConfig returns a config that builds a stock desktop live image. It
// is a usable starting point: dump it, edit it, feed it back in.
func DefaultConfig() *ubuildapi.Config {
	return &ubuildapi.Config{
		Release:      "noble",
		Architecture: ubuildapi.ArchitectureAmd64,
		Mirror:       "http://archive.ubuntu.com/ubuntu/",
		Hostname:     defaultHostname,
		LiveUser: ubuildapi.LiveUser{
			Name:     "ubuntu",
			FullName: "Live session user",
			Groups:   []string{"adm", "cdrom", "sudo", "dip", "plugdev"},
		},
		Locale:      "en_US.UTF-8",
		Timezone:    "Etc/UTC",
		Packages:    defaultPackageSelection(ubuildapi.ArchitectureAmd64),
		Compression: ubuildapi.DefaultCompression(),
		Iso: ubuildapi.Iso{
			VolumeLabel: "UBUNTU-LIVE",
		},
	}
}
