// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"
	"strings"
)

// PackageSet is a named group of packages installed by one generic install
// stage. Tagged sets keep the stage list declarative: adding a set adds a
// stage, without new code.
type PackageSet struct {
	Name     string   `yaml:"name" json:"name"`
	Packages []string `yaml:"packages" json:"packages"`
}

func (s *PackageSet) IsValid() error {
	if s.Name == "" {
		return fmt.Errorf("package set name cannot be empty")
	}
	if len(s.Packages) == 0 {
		return fmt.Errorf("package set (%s) contains no packages", s.Name)
	}
	for _, pkg := range s.Packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("package set (%s) contains an empty package name", s.Name)
		}
	}
	return nil
}

// PackageSelection describes everything the pipeline installs, removes, or
// side-loads.
type PackageSelection struct {
	// Sets are installed in order, each as its own stage. Install failures
	// are fatal.
	Sets []PackageSet `yaml:"sets" json:"sets,omitempty"`
	// Purge is removed after installation, best-effort: a package that is
	// not installed is not an error.
	Purge []string `yaml:"purge" json:"purge,omitempty"`
	// ExtraDebs are locally supplied package archives installed into the
	// image, in order. Paths are resolved against the config file directory.
	ExtraDebs []string `yaml:"extraDebs" json:"extraDebs,omitempty"`
}

func (p *PackageSelection) IsValid() error {
	seen := map[string]bool{}
	for i := range p.Sets {
		err := p.Sets[i].IsValid()
		if err != nil {
			return err
		}
		if seen[p.Sets[i].Name] {
			return fmt.Errorf("duplicate package set name (%s)", p.Sets[i].Name)
		}
		seen[p.Sets[i].Name] = true
	}

	for _, deb := range p.ExtraDebs {
		if !strings.HasSuffix(deb, ".deb") {
			return fmt.Errorf("extra package archive (%s) is not a .deb file", deb)
		}
	}

	return nil
}
