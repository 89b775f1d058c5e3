// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// Config is the immutable build configuration, constructed once before the
// pipeline starts and passed explicitly to every component.
type Config struct {
	Release      Release      `yaml:"release" json:"release"`
	Architecture Architecture `yaml:"architecture" json:"architecture"`
	// Mirror is the package mirror URL the bootstrap tool and the image's
	// apt sources use.
	Mirror string `yaml:"mirror" json:"mirror"`
	// Hostname of the live system.
	Hostname string   `yaml:"hostname" json:"hostname,omitempty"`
	LiveUser LiveUser `yaml:"liveUser" json:"liveUser"`
	// Locale is generated and set as the system default, e.g. "en_US.UTF-8".
	Locale   string           `yaml:"locale" json:"locale,omitempty"`
	Timezone string           `yaml:"timezone" json:"timezone,omitempty"`
	Packages PackageSelection `yaml:"packages" json:"packages,omitempty"`
	// InstallerSetupCommands run inside the image after package
	// installation to reconfigure the guided installer. Each entry is one
	// command line.
	InstallerSetupCommands []string    `yaml:"installerSetupCommands" json:"installerSetupCommands,omitempty"`
	Compression            Compression `yaml:"compression" json:"compression,omitempty"`
	Iso                    Iso         `yaml:"iso" json:"iso,omitempty"`
}

func (c *Config) IsValid() error {
	err := c.Release.IsValid()
	if err != nil {
		return err
	}

	err = c.Architecture.IsValid()
	if err != nil {
		return err
	}

	if c.Mirror == "" {
		return fmt.Errorf("mirror URL must be specified")
	}
	if !govalidator.IsURL(c.Mirror) {
		return fmt.Errorf("invalid mirror URL (%s)", c.Mirror)
	}

	if c.Hostname != "" && !govalidator.IsDNSName(c.Hostname) {
		return fmt.Errorf("invalid hostname (%s)", c.Hostname)
	}

	err = c.LiveUser.IsValid()
	if err != nil {
		return err
	}

	err = c.Packages.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'packages' field:\n%w", err)
	}

	err = c.Compression.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'compression' field:\n%w", err)
	}

	err = c.Iso.IsValid()
	if err != nil {
		return fmt.Errorf("invalid 'iso' field:\n%w", err)
	}

	return nil
}
