// Licensed under the MIT License.

package ubuildapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageSetIsValid(t *testing.T) {
	set := PackageSet{Name: "desktop", Packages: []string{"ubuntu-desktop"}}
	assert.NoError(t, set.IsValid())
}

func TestPackageSetIsValid_EmptyName(t *testing.T) {
	set := PackageSet{Packages: []string{"ubuntu-desktop"}}
	assert.Error(t, set.IsValid())
}

func TestPackageSetIsValid_NoPackages(t *testing.T) {
	set := PackageSet{Name: "desktop"}

	err := set.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "contains no packages")
}

func TestPackageSetIsValid_BlankPackageName(t *testing.T) {
	set := PackageSet{Name: "desktop", Packages: []string{"ubuntu-desktop", " "}}
	assert.Error(t, set.IsValid())
}

func TestPackageSelectionIsValid_DuplicateSetNames(t *testing.T) {
	selection := PackageSelection{
		Sets: []PackageSet{
			{Name: "desktop", Packages: []string{"a"}},
			{Name: "desktop", Packages: []string{"b"}},
		},
	}

	err := selection.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "duplicate package set name (desktop)")
}

func TestPackageSelectionIsValid_ExtraDebSuffix(t *testing.T) {
	selection := PackageSelection{ExtraDebs: []string{"pkgs/custom.deb"}}
	assert.NoError(t, selection.IsValid())

	selection.ExtraDebs = []string{"pkgs/custom.rpm"}
	err := selection.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "is not a .deb file")
}

func TestPackageSelectionIsValid_Empty(t *testing.T) {
	selection := PackageSelection{}
	assert.NoError(t, selection.IsValid())
}
