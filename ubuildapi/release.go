// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"
	"strings"

	"github.com/snnbyyds/ubuntu-build/internal/sliceutils"
)

// Release is the distribution release identifier (the codename passed to the
// bootstrap tool).
type Release string

// Releases this pipeline is known to build correctly. Bootstrapping an
// unknown codename fails halfway through with confusing errors, so the set
// is validated before any side effect.
var supportedReleases = []Release{
	"focal",
	"jammy",
	"noble",
	"oracular",
	"plucky",
}

func SupportedReleases() []Release {
	return append([]Release(nil), supportedReleases...)
}

func (r Release) IsValid() error {
	if !sliceutils.ContainsValue(supportedReleases, r) {
		names := make([]string, 0, len(supportedReleases))
		for _, release := range supportedReleases {
			names = append(names, string(release))
		}
		return fmt.Errorf("invalid release value (%s), supported releases: %s", r, strings.Join(names, ", "))
	}
	return nil
}
