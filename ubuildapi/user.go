// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"

	"github.com/snnbyyds/ubuntu-build/internal/userutils"
)

// LiveUser is the account the live session logs into.
type LiveUser struct {
	Name     string   `yaml:"name" json:"name"`
	UID      *int     `yaml:"uid" json:"uid,omitempty"`
	Password string   `yaml:"password" json:"password,omitempty"`
	FullName string   `yaml:"fullName" json:"fullName,omitempty"`
	Groups   []string `yaml:"groups" json:"groups,omitempty"`
}

func (u *LiveUser) IsValid() error {
	err := userutils.NameIsValid(u.Name)
	if err != nil {
		return fmt.Errorf("live user is invalid:\n%w", err)
	}

	if u.UID != nil {
		err = userutils.UIDIsValid(*u.UID)
		if err != nil {
			return fmt.Errorf("live user (%s) is invalid:\n%w", u.Name, err)
		}
	}

	for _, group := range u.Groups {
		err = userutils.NameIsValid(group)
		if err != nil {
			return fmt.Errorf("live user (%s) has invalid group:\n%w", u.Name, err)
		}
	}

	return nil
}
