// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"
	"strings"
)

// Iso holds the parameters of the final disc image.
type Iso struct {
	// VolumeLabel is the ISO-9660 volume identifier. When empty, it is
	// derived from the built tree's os-release.
	VolumeLabel string `yaml:"volumeLabel" json:"volumeLabel,omitempty"`
	// ApplicationId is recorded in the primary volume descriptor.
	ApplicationId string `yaml:"applicationId" json:"applicationId,omitempty"`
}

func (i *Iso) IsValid() error {
	if len(i.VolumeLabel) > 32 {
		return fmt.Errorf("volume label (%s) is longer than 32 characters", i.VolumeLabel)
	}
	if strings.ContainsAny(i.VolumeLabel, " \t") {
		return fmt.Errorf("volume label (%s) must not contain whitespace", i.VolumeLabel)
	}
	return nil
}
